package suggest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClosest_Typo(t *testing.T) {
	hit, ok := Closest("hieght", []string{"height", "weight", "age"}, ColumnThreshold)
	assert.True(t, ok)
	assert.Equal(t, "height", hit)
}

func TestClosest_NoMatchBelowThreshold(t *testing.T) {
	_, ok := Closest("zzzzzz", []string{"height", "weight"}, ColumnThreshold)
	assert.False(t, ok)
}

func TestClosest_EmptyCandidates(t *testing.T) {
	_, ok := Closest("anything", nil, NameThreshold)
	assert.False(t, ok)
}

func TestClosest_CaseInsensitive(t *testing.T) {
	hit, ok := Closest("Point", []string{"point", "line"}, NameThreshold)
	assert.True(t, ok)
	assert.Equal(t, "point", hit)
}

func TestForColumn_IncludesSuggestionAndCatalog(t *testing.T) {
	msg := ForColumn("hieght", []string{"weight", "height"})
	assert.Contains(t, msg, `Did you mean "height"?`)
	assert.Contains(t, msg, "height, weight")
}

func TestForName_NoSuggestion(t *testing.T) {
	msg := ForName("geometry type", "qqqq", []string{"point", "line"})
	assert.NotContains(t, msg, "Did you mean")
	assert.Contains(t, msg, "line, point")
}
