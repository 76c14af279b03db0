package catalog

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/Fervoyush/plotnine-mcp/api"
	"github.com/Fervoyush/plotnine-mcp/internal/frame"
	"github.com/Fervoyush/plotnine-mcp/internal/suggest"
)

// Template is a named preset bundle of geometry layers, scales, theme
// and coordinate hints for a common chart shape. Applying one overlays
// the user's aesthetics and overrides onto these defaults, user values
// winning.
type Template struct {
	Name         string
	Description  string
	Geoms        []api.Geom
	Scales       []api.Scale
	Theme        *api.Theme
	Coords       *api.Coords
	Facets       *api.Facets
	RequiredAes  []string
	SuggestedAes []string
}

var templates = []Template{
	{
		Name:        "time_series",
		Description: "Line plot optimized for time-based data with date formatting",
		Geoms:       []api.Geom{{Type: "line", Params: map[string]any{"size": 1.0}}},
		Scales:      []api.Scale{{Aesthetic: "x", Type: "datetime"}},
		Theme: &api.Theme{Base: "minimal", Customizations: map[string]any{
			"figure_size": []any{12.0, 6.0},
		}},
		RequiredAes:  []string{"x", "y"},
		SuggestedAes: []string{"color", "group"},
	},
	{
		Name:        "scatter_with_trend",
		Description: "Scatter plot with linear regression trend line and confidence interval",
		Geoms: []api.Geom{
			{Type: "point", Params: map[string]any{"size": 2.0, "alpha": 0.6}},
			{Type: "smooth", Params: map[string]any{"method": "lm", "se": true}},
		},
		Theme:        &api.Theme{Base: "minimal"},
		RequiredAes:  []string{"x", "y"},
		SuggestedAes: []string{"color"},
	},
	{
		Name:        "distribution_comparison",
		Description: "Violin plot for comparing distributions across groups",
		Geoms: []api.Geom{
			{Type: "violin", Params: map[string]any{"alpha": 0.7}},
			{Type: "jitter", Params: map[string]any{"width": 0.1, "alpha": 0.3, "size": 1.0}},
		},
		Theme:        &api.Theme{Base: "bw"},
		RequiredAes:  []string{"x", "y"},
		SuggestedAes: []string{"fill", "color"},
	},
	{
		Name:        "category_breakdown",
		Description: "Bar chart showing counts or values by category",
		Geoms:       []api.Geom{{Type: "col"}},
		Theme: &api.Theme{Base: "minimal", Customizations: map[string]any{
			"legend_position": "bottom",
		}},
		Coords:       &api.Coords{Type: "flip"},
		RequiredAes:  []string{"x", "y"},
		SuggestedAes: []string{"fill"},
	},
	{
		Name:        "correlation_heatmap",
		Description: "Heatmap for visualizing correlations or relationships",
		Geoms:       []api.Geom{{Type: "tile"}},
		Scales: []api.Scale{{
			Aesthetic: "fill",
			Type:      "gradient",
			Params:    map[string]any{"low": "blue", "high": "red"},
		}},
		Theme: &api.Theme{Base: "minimal", Customizations: map[string]any{
			"figure_size": []any{10.0, 8.0},
		}},
		RequiredAes: []string{"x", "y", "fill"},
	},
	{
		Name:        "boxplot_comparison",
		Description: "Boxplot with individual points for detailed distribution comparison",
		Geoms: []api.Geom{
			{Type: "boxplot", Params: map[string]any{"alpha": 0.7}},
			{Type: "jitter", Params: map[string]any{"width": 0.2, "alpha": 0.4, "size": 1.0}},
		},
		Theme:        &api.Theme{Base: "bw"},
		RequiredAes:  []string{"x", "y"},
		SuggestedAes: []string{"fill", "color"},
	},
	{
		Name:        "multi_line",
		Description: "Multiple line plots for comparing trends across categories",
		Geoms:       []api.Geom{{Type: "line", Params: map[string]any{"size": 1.2}}},
		Theme: &api.Theme{Base: "minimal", Customizations: map[string]any{
			"figure_size":     []any{12.0, 6.0},
			"legend_position": "right",
		}},
		RequiredAes:  []string{"x", "y", "color"},
		SuggestedAes: []string{"linetype"},
	},
	{
		Name:        "histogram_with_density",
		Description: "Histogram overlaid with kernel density curve",
		Geoms: []api.Geom{
			{Type: "histogram", Params: map[string]any{"alpha": 0.7, "bins": 30.0}},
			{Type: "density", Params: map[string]any{"alpha": 0.0}},
		},
		Theme:        &api.Theme{Base: "minimal"},
		RequiredAes:  []string{"x"},
		SuggestedAes: []string{"fill", "color"},
	},
	{
		Name:        "before_after",
		Description: "Side-by-side comparison of before and after measurements",
		Geoms: []api.Geom{
			{Type: "point", Params: map[string]any{"size": 3.0}},
			{Type: "line", Params: map[string]any{"alpha": 0.5}},
		},
		Theme:        &api.Theme{Base: "bw"},
		Facets:       &api.Facets{Type: "wrap", Params: map[string]any{"ncol": 2.0}},
		RequiredAes:  []string{"x", "y"},
		SuggestedAes: []string{"group", "color"},
	},
}

// Templates returns the catalog in its declared order.
func Templates() []Template {
	return templates
}

// TemplateNames returns the template names in catalog order.
func TemplateNames() []string {
	names := make([]string, len(templates))
	for i, t := range templates {
		names[i] = t.Name
	}
	return names
}

// LookupTemplate finds a template by name.
func LookupTemplate(name string) (Template, error) {
	for _, t := range templates {
		if t.Name == name {
			return t, nil
		}
	}
	return Template{}, fmt.Errorf("%s", suggest.ForName("template", name, TemplateNames()))
}

// ApplyTemplate builds a full PlotConfig by overlaying the user's data
// source, aesthetics and overrides on a template's defaults. Overrides
// replace whole top-level sections, user values always winning over the
// preset.
func ApplyTemplate(name string, source api.DataSource, aes api.Aesthetics, overrides map[string]any) (*api.PlotConfig, error) {
	tpl, err := LookupTemplate(name)
	if err != nil {
		return nil, err
	}

	provided := map[string]bool{}
	for _, b := range aes.Bindings() {
		provided[b.Channel] = true
	}
	var missing []string
	for _, req := range tpl.RequiredAes {
		if !provided[req] {
			missing = append(missing, req)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("template %q requires aesthetics %v; missing %v",
			name, tpl.RequiredAes, missing)
	}

	cfg := api.PlotConfig{
		DataSource: source,
		Aes:        aes,
		Geoms:      tpl.Geoms,
		Scales:     tpl.Scales,
		Theme:      tpl.Theme,
		Coords:     tpl.Coords,
		Facets:     tpl.Facets,
	}
	return MergeOverrides(&cfg, overrides)
}

// MergeOverrides layers override sections over cfg through the JSON
// form: each override key replaces the matching top-level section. The
// merged result is re-validated.
func MergeOverrides(cfg *api.PlotConfig, overrides map[string]any) (*api.PlotConfig, error) {
	if len(overrides) == 0 {
		return cfg, nil
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var asMap map[string]any
	if err := json.Unmarshal(raw, &asMap); err != nil {
		return nil, err
	}
	for k, v := range overrides {
		asMap[k] = v
	}
	merged, err := json.Marshal(asMap)
	if err != nil {
		return nil, err
	}
	return api.ParseConfig(merged)
}

// Recommendation is one scored template suggestion.
type Recommendation struct {
	Name   string  `json:"name"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// SuggestTemplates scores the catalog against the dataset's column-type
// signature and an optional free-text goal, returning the top five.
// Deterministic rule evaluation, no learned model.
func SuggestTemplates(ds *frame.Dataset, goal string) []Recommendation {
	tc := ds.CountTypes()
	recs := scoreTemplates(tc, goal)
	if len(recs) > 5 {
		recs = recs[:5]
	}
	return recs
}

func scoreTemplates(tc frame.TypeCounts, goal string) []Recommendation {
	hasTime := tc.Datetime >= 1
	var recs []Recommendation
	add := func(name string, score float64, reason string) {
		recs = append(recs, Recommendation{Name: name, Score: score, Reason: reason})
	}

	if hasTime && tc.Numeric >= 1 {
		add("time_series", 3, "a datetime column and a numeric column suit a time series")
		if tc.Categorical >= 1 {
			add("multi_line", 2.5, "a categorical column can split the trend into multiple lines")
		}
	}
	if tc.Categorical >= 1 && tc.Numeric >= 1 {
		add("distribution_comparison", 2, "numeric values can be compared across categories")
		add("boxplot_comparison", 2, "boxplots compare numeric spread per category")
		add("before_after", 1, "paired measurements can be faceted side by side")
	}
	if tc.Numeric >= 2 {
		add("scatter_with_trend", 2, "two numeric columns suggest a relationship plot")
		if tc.Numeric >= 3 {
			add("correlation_heatmap", 1.5, "three or more numeric columns form a correlation matrix")
		}
	}
	if tc.Numeric >= 1 && tc.Categorical == 0 {
		add("histogram_with_density", 2, "a lone numeric column is best seen as a distribution")
	}
	if tc.Categorical >= 1 {
		add("category_breakdown", 1.5, "categorical columns summarize into per-category bars")
	}

	if goal != "" {
		boost := goalKeywords(strings.ToLower(goal))
		for i := range recs {
			for _, kw := range boost {
				if strings.Contains(recs[i].Name, kw) {
					recs[i].Score += 1
					recs[i].Reason += "; matches stated goal"
					break
				}
			}
		}
	}

	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Score > recs[j].Score })
	return recs
}

// goalKeywords maps the free-text goal onto template-name fragments.
func goalKeywords(goal string) []string {
	var kws []string
	if strings.Contains(goal, "trend") || strings.Contains(goal, "time") {
		kws = append(kws, "time", "line")
	}
	if strings.Contains(goal, "compar") {
		kws = append(kws, "comparison", "boxplot")
	}
	if strings.Contains(goal, "distribution") {
		kws = append(kws, "distribution", "histogram")
	}
	if strings.Contains(goal, "correlation") || strings.Contains(goal, "relationship") {
		kws = append(kws, "correlation", "scatter")
	}
	return kws
}
