package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Fervoyush/plotnine-mcp/api"
	"github.com/Fervoyush/plotnine-mcp/internal/load"
	"github.com/Fervoyush/plotnine-mcp/internal/render"
	"github.com/Fervoyush/plotnine-mcp/internal/transform"
)

var (
	outputDir    string
	outputFormat string
)

func init() {
	renderCmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Directory for the rendered file (overrides the config)")
	renderCmd.Flags().StringVarP(&outputFormat, "format", "f", "", "Output format: png, pdf or svg (overrides the config)")
	rootCmd.AddCommand(renderCmd)
}

var renderCmd = &cobra.Command{
	Use:   "render <config.json>",
	Short: "Render a plot configuration file without starting the server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()

		raw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		cfg, err := api.ParseConfig(raw)
		if err != nil {
			return err
		}
		if outputDir != "" || outputFormat != "" {
			out := api.Output{}
			if cfg.Output != nil {
				out = *cfg.Output
			}
			if outputDir != "" {
				out.Directory = outputDir
			}
			if outputFormat != "" {
				out.Format = outputFormat
			}
			cfg.Output = &out
		}

		ds, err := load.Load(cmd.Context(), cfg.DataSource)
		if err != nil {
			return err
		}
		if ds, err = transform.Apply(ds, cfg.Transforms); err != nil {
			return err
		}
		assembled, err := render.Assemble(ds, cfg)
		if err != nil {
			return err
		}
		var out api.Output
		if cfg.Output != nil {
			out = *cfg.Output
		}
		info, err := render.Export(assembled, out)
		if err != nil {
			return err
		}
		logger.Info("rendered", "rows", assembled.Info.Rows, "panels", assembled.Info.Panels)
		fmt.Println(info.Path)
		return nil
	},
}
