package main

import "github.com/Fervoyush/plotnine-mcp/cmd"

func main() {
	cmd.Execute()
}
