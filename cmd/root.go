package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/Fervoyush/plotnine-mcp/internal/service"
)

var verbose bool

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// newLogger builds the stderr logger. Stdout is reserved for the MCP
// stdio transport.
func newLogger() *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "plotnine-mcp",
	})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

var rootCmd = &cobra.Command{
	Use:   "plotnine-mcp",
	Short: "MCP server for declarative data visualization",
	Long: "plotnine-mcp serves plotting tools over the Model Context Protocol on stdio.\n" +
		"Clients describe plots as JSON configurations; the server loads the data,\n" +
		"applies transformations and renders png, pdf or svg files.",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		svc := service.New(logger)
		logger.Info("serving on stdio", "version", service.Version)
		if err := server.ServeStdio(svc.NewServer()); err != nil {
			return fmt.Errorf("stdio server: %w", err)
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
