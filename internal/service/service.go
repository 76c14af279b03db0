// Package service exposes the plotting pipeline as MCP tools over a
// stdio server: plot creation, data preview, registry listings,
// template application and config round-tripping.
package service

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/invopop/jsonschema"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ohler55/ojg/oj"

	"github.com/Fervoyush/plotnine-mcp/api"
)

// Version is the server version reported during the MCP handshake.
const Version = "0.2.0"

// Service wires the tool handlers together with a shared logger.
type Service struct {
	log *log.Logger
}

// New builds a Service. A nil logger silences the service.
func New(logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Service{log: logger}
}

// NewServer builds the MCP server with every tool registered.
func (s *Service) NewServer() *server.MCPServer {
	srv := server.NewMCPServer(
		"plotnine-mcp", Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	s.Register(srv)
	return srv
}

// emptyArgs is the argument struct for tools that take no arguments.
// It must be a named type: the schema reflector cannot expand an
// anonymous struct.
type emptyArgs struct{}

// toolDef pairs a tool declaration with its handler.
type toolDef struct {
	name    string
	desc    string
	args    any
	handler server.ToolHandlerFunc
}

// Register adds all tools to the server. Input schemas are reflected
// from the argument structs.
func (s *Service) Register(srv *server.MCPServer) {
	defs := []toolDef{
		{
			name: "create_plot",
			desc: "Create a plot from a declarative configuration: data source, " +
				"aesthetic mappings, geometry layers, scales, theme, facets and output settings. " +
				"Returns the path of the rendered file.",
			args:    &api.PlotConfig{},
			handler: s.handleCreatePlot,
		},
		{
			name: "preview_data",
			desc: "Load a data source and summarize it without plotting: shape, column " +
				"types, sample rows, numeric statistics and missing-value counts.",
			args:    &PreviewDataArgs{},
			handler: s.handlePreviewData,
		},
		{
			name:    "list_geom_types",
			desc:    "List the available geometry types with their descriptions and required aesthetics.",
			args:    &emptyArgs{},
			handler: s.handleListGeoms,
		},
		{
			name:    "list_themes",
			desc:    "List the available base themes with their descriptions.",
			args:    &emptyArgs{},
			handler: s.handleListThemes,
		},
		{
			name:    "list_color_palettes",
			desc:    "List the built-in color palettes, optionally filtered by category.",
			args:    &ListPalettesArgs{},
			handler: s.handleListPalettes,
		},
		{
			name:    "list_plot_templates",
			desc:    "List the preset plot templates with their required and suggested aesthetics.",
			args:    &emptyArgs{},
			handler: s.handleListTemplates,
		},
		{
			name: "create_plot_from_template",
			desc: "Create a plot from a named template, overlaying the given data source, " +
				"aesthetics and optional section overrides on the template's defaults.",
			args:    &TemplatePlotArgs{},
			handler: s.handleTemplatePlot,
		},
		{
			name: "suggest_plot_templates",
			desc: "Inspect a data source's column types and suggest suitable plot templates, " +
				"optionally guided by a stated analysis goal.",
			args:    &SuggestArgs{},
			handler: s.handleSuggestTemplates,
		},
		{
			name: "export_plot_config",
			desc: "Validate a plot configuration and return its canonical JSON form, " +
				"optionally writing it to a file for later reuse.",
			args:    &ExportConfigArgs{},
			handler: s.handleExportConfig,
		},
		{
			name: "import_plot_config",
			desc: "Read a previously exported plot configuration from a file or JSON string " +
				"and validate it.",
			args:    &ImportConfigArgs{},
			handler: s.handleImportConfig,
		},
		{
			name: "batch_create_plots",
			desc: "Render several plot configurations in one call. Each configuration is " +
				"processed independently; one failure does not stop the rest.",
			args:    &BatchArgs{},
			handler: s.handleBatch,
		},
	}
	for _, d := range defs {
		srv.AddTool(mcp.NewToolWithRawSchema(d.name, d.desc, mustSchema(d.args)), d.handler)
	}
}

// mustSchema reflects an argument struct into a JSON schema document.
// The tool table is static, so reflection failures are programmer
// errors.
func mustSchema(v any) json.RawMessage {
	r := jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
	raw, err := json.Marshal(r.Reflect(v))
	if err != nil {
		panic(fmt.Sprintf("reflect tool schema: %v", err))
	}
	return raw
}

// bind decodes the raw tool arguments into a typed struct.
func bind(req mcp.CallToolRequest, target any) error {
	raw, err := json.Marshal(req.GetArguments())
	if err != nil {
		return fmt.Errorf("read arguments: %w", err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	return nil
}

// jsonResult renders a response value as a JSON tool result.
func jsonResult(v any) *mcp.CallToolResult {
	raw, err := oj.Marshal(v, 2)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode response: %v", err))
	}
	return mcp.NewToolResultText(string(raw))
}

// failure logs and wraps a pipeline error as an error tool result.
func (s *Service) failure(tool string, err error) *mcp.CallToolResult {
	s.log.Error("tool failed", "tool", tool, "err", err)
	return mcp.NewToolResultError(err.Error())
}
