package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Fervoyush/plotnine-mcp/api"
	"github.com/Fervoyush/plotnine-mcp/internal/catalog"
	"github.com/Fervoyush/plotnine-mcp/internal/load"
	"github.com/Fervoyush/plotnine-mcp/internal/render"
	"github.com/Fervoyush/plotnine-mcp/internal/transform"
)

// PreviewDataArgs are the arguments of the preview_data tool.
type PreviewDataArgs struct {
	DataSource api.DataSource      `json:"data_source"`
	Transforms []api.TransformStep `json:"transforms,omitempty"`
	Rows       int                 `json:"rows,omitempty" jsonschema:"description=Number of sample rows to return (default 10)"`
}

// ListPalettesArgs filter the palette listing.
type ListPalettesArgs struct {
	Category string `json:"category,omitempty"`
}

// TemplatePlotArgs are the arguments of create_plot_from_template.
type TemplatePlotArgs struct {
	Template   string         `json:"template"`
	DataSource api.DataSource `json:"data_source"`
	Aes        api.Aesthetics `json:"aes"`
	Overrides  map[string]any `json:"overrides,omitempty"`
	Output     *api.Output    `json:"output,omitempty"`
}

// SuggestArgs are the arguments of suggest_plot_templates.
type SuggestArgs struct {
	DataSource api.DataSource `json:"data_source"`
	Goal       string         `json:"goal,omitempty"`
}

// ExportConfigArgs are the arguments of export_plot_config.
type ExportConfigArgs struct {
	Config api.PlotConfig `json:"config"`
	Path   string         `json:"path,omitempty" jsonschema:"description=Optional file to write the canonical config JSON to"`
}

// ImportConfigArgs are the arguments of import_plot_config. Exactly
// one of path and config_json should be set; overrides are merged over
// the loaded config section by section, overrides winning.
type ImportConfigArgs struct {
	Path       string         `json:"path,omitempty"`
	ConfigJSON string         `json:"config_json,omitempty"`
	Overrides  map[string]any `json:"overrides,omitempty"`
}

// BatchArgs are the arguments of batch_create_plots.
type BatchArgs struct {
	Configs []api.PlotConfig `json:"configs"`
}

// PlotResult is the success payload of the plot-producing tools.
type PlotResult struct {
	Success  bool        `json:"success"`
	FilePath string      `json:"file_path"`
	Format   string      `json:"format"`
	Width    float64     `json:"width"`
	Height   float64     `json:"height"`
	DPI      int         `json:"dpi"`
	Plot     render.Info `json:"plot"`
}

// BatchItem is one entry of the batch_create_plots response.
type BatchItem struct {
	Index    int    `json:"index"`
	Success  bool   `json:"success"`
	FilePath string `json:"file_path,omitempty"`
	Error    string `json:"error,omitempty"`
}

// runPipeline executes the full plot pipeline for one configuration:
// validate, load, transform, assemble, export.
func (s *Service) runPipeline(ctx context.Context, cfg *api.PlotConfig) (PlotResult, error) {
	if err := cfg.Validate(); err != nil {
		return PlotResult{}, err
	}
	ds, err := load.Load(ctx, cfg.DataSource)
	if err != nil {
		return PlotResult{}, err
	}
	ds, err = transform.Apply(ds, cfg.Transforms)
	if err != nil {
		return PlotResult{}, err
	}
	assembled, err := render.Assemble(ds, cfg)
	if err != nil {
		return PlotResult{}, err
	}
	var out api.Output
	if cfg.Output != nil {
		out = *cfg.Output
	}
	info, err := render.Export(assembled, out)
	if err != nil {
		return PlotResult{}, err
	}
	return PlotResult{
		Success:  true,
		FilePath: info.Path,
		Format:   info.Format,
		Width:    info.Width,
		Height:   info.Height,
		DPI:      info.DPI,
		Plot:     assembled.Info,
	}, nil
}

func (s *Service) handleCreatePlot(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var cfg api.PlotConfig
	if err := bind(req, &cfg); err != nil {
		return s.failure("create_plot", err), nil
	}
	start := time.Now()
	result, err := s.runPipeline(ctx, &cfg)
	if err != nil {
		return s.failure("create_plot", err), nil
	}
	s.log.Info("plot created",
		"path", result.FilePath, "rows", result.Plot.Rows,
		"geoms", result.Plot.Geoms, "took", time.Since(start))
	return jsonResult(result), nil
}

func (s *Service) handlePreviewData(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args PreviewDataArgs
	if err := bind(req, &args); err != nil {
		return s.failure("preview_data", err), nil
	}
	ds, err := load.Load(ctx, args.DataSource)
	if err != nil {
		return s.failure("preview_data", err), nil
	}
	if ds, err = transform.Apply(ds, args.Transforms); err != nil {
		return s.failure("preview_data", err), nil
	}
	rows := args.Rows
	if rows <= 0 {
		rows = 10
	}
	return jsonResult(ds.Summarize(rows)), nil
}

func (s *Service) handleListGeoms(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(map[string]any{
		"geoms":  render.GeomCatalog(),
		"scales": render.ScaleRegistry(),
		"stats":  render.StatNames(),
	}), nil
}

func (s *Service) handleListThemes(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(map[string]any{"themes": render.ThemeDescriptions()}), nil
}

func (s *Service) handleListPalettes(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args ListPalettesArgs
	if err := bind(req, &args); err != nil {
		return s.failure("list_color_palettes", err), nil
	}
	palettes, err := catalog.Palettes(args.Category)
	if err != nil {
		return s.failure("list_color_palettes", err), nil
	}
	return jsonResult(map[string]any{
		"categories": catalog.PaletteCategories(),
		"palettes":   palettes,
	}), nil
}

// TemplateInfo is one list_plot_templates entry.
type TemplateInfo struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	RequiredAes  []string `json:"required_aes"`
	SuggestedAes []string `json:"suggested_aes,omitempty"`
}

func (s *Service) handleListTemplates(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var infos []TemplateInfo
	for _, tpl := range catalog.Templates() {
		infos = append(infos, TemplateInfo{
			Name:         tpl.Name,
			Description:  tpl.Description,
			RequiredAes:  tpl.RequiredAes,
			SuggestedAes: tpl.SuggestedAes,
		})
	}
	return jsonResult(map[string]any{"templates": infos}), nil
}

func (s *Service) handleTemplatePlot(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args TemplatePlotArgs
	if err := bind(req, &args); err != nil {
		return s.failure("create_plot_from_template", err), nil
	}
	cfg, err := catalog.ApplyTemplate(args.Template, args.DataSource, args.Aes, args.Overrides)
	if err != nil {
		return s.failure("create_plot_from_template", err), nil
	}
	if args.Output != nil {
		cfg.Output = args.Output
	}
	result, err := s.runPipeline(ctx, cfg)
	if err != nil {
		return s.failure("create_plot_from_template", err), nil
	}
	s.log.Info("template plot created", "template", args.Template, "path", result.FilePath)
	return jsonResult(result), nil
}

func (s *Service) handleSuggestTemplates(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args SuggestArgs
	if err := bind(req, &args); err != nil {
		return s.failure("suggest_plot_templates", err), nil
	}
	ds, err := load.Load(ctx, args.DataSource)
	if err != nil {
		return s.failure("suggest_plot_templates", err), nil
	}
	tc := ds.CountTypes()
	return jsonResult(map[string]any{
		"column_types": map[string]int{
			"numeric":     tc.Numeric,
			"categorical": tc.Categorical,
			"datetime":    tc.Datetime,
		},
		"recommendations": catalog.SuggestTemplates(ds, args.Goal),
	}), nil
}

func (s *Service) handleExportConfig(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args ExportConfigArgs
	if err := bind(req, &args); err != nil {
		return s.failure("export_plot_config", err), nil
	}
	if err := args.Config.Validate(); err != nil {
		return s.failure("export_plot_config", err), nil
	}
	canonical, err := json.MarshalIndent(args.Config, "", "  ")
	if err != nil {
		return s.failure("export_plot_config", err), nil
	}
	if args.Path != "" {
		if err := os.WriteFile(args.Path, canonical, 0o644); err != nil {
			return s.failure("export_plot_config", fmt.Errorf("write config: %w", err)), nil
		}
		s.log.Info("config exported", "path", args.Path)
	}
	return mcp.NewToolResultText(string(canonical)), nil
}

func (s *Service) handleImportConfig(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args ImportConfigArgs
	if err := bind(req, &args); err != nil {
		return s.failure("import_plot_config", err), nil
	}
	var raw []byte
	switch {
	case args.Path != "":
		data, err := os.ReadFile(args.Path)
		if err != nil {
			return s.failure("import_plot_config", fmt.Errorf("read config: %w", err)), nil
		}
		raw = data
	case args.ConfigJSON != "":
		raw = []byte(args.ConfigJSON)
	default:
		return s.failure("import_plot_config", fmt.Errorf("either path or config_json is required")), nil
	}
	cfg, err := api.ParseConfig(raw)
	if err != nil {
		return s.failure("import_plot_config", err), nil
	}
	cfg, err = catalog.MergeOverrides(cfg, args.Overrides)
	if err != nil {
		return s.failure("import_plot_config", err), nil
	}
	return jsonResult(map[string]any{
		"valid":  true,
		"config": cfg,
		"geoms":  geomTypes(cfg),
	}), nil
}

func geomTypes(cfg *api.PlotConfig) []string {
	layers := cfg.GeomLayers()
	out := make([]string, len(layers))
	for i, g := range layers {
		out[i] = g.Type
	}
	return out
}

// runItem guards a single batch entry so one bad config cannot take
// down the rest of the batch.
func (s *Service) runItem(ctx context.Context, cfg *api.PlotConfig) (result *PlotResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("plot pipeline panicked: %v", r)
		}
	}()
	res, err := s.runPipeline(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *Service) handleBatch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args BatchArgs
	if err := bind(req, &args); err != nil {
		return s.failure("batch_create_plots", err), nil
	}
	if len(args.Configs) == 0 {
		return s.failure("batch_create_plots", fmt.Errorf("configs must not be empty")), nil
	}
	items := make([]BatchItem, 0, len(args.Configs))
	succeeded := 0
	for i := range args.Configs {
		item := BatchItem{Index: i}
		result, err := s.runItem(ctx, &args.Configs[i])
		if err != nil {
			item.Error = err.Error()
			s.log.Warn("batch item failed", "index", i, "err", err)
		} else {
			item.Success = true
			item.FilePath = result.FilePath
			succeeded++
		}
		items = append(items, item)
	}
	s.log.Info("batch finished", "total", len(items), "succeeded", succeeded)
	return jsonResult(map[string]any{
		"total":     len(items),
		"succeeded": succeeded,
		"failed":    len(items) - succeeded,
		"results":   items,
	}), nil
}
