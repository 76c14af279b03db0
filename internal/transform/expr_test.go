package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evalRow(t *testing.T, src string, row map[string]any) any {
	t.Helper()
	node, err := parseExpr(src)
	require.NoError(t, err)
	v, err := node.eval(func(name string) (any, bool) {
		v, ok := row[name]
		return v, ok
	})
	require.NoError(t, err)
	return v
}

func TestExpr_Arithmetic(t *testing.T) {
	row := map[string]any{"price": 3.0, "quantity": 4.0}
	assert.Equal(t, 12.0, evalRow(t, "price * quantity", row))
	assert.Equal(t, 3.5, evalRow(t, "(price + quantity) / 2", row))
	assert.Equal(t, 1.0, evalRow(t, "quantity % price", row))
	assert.Equal(t, -3.0, evalRow(t, "-price", row))
}

func TestExpr_Comparison(t *testing.T) {
	row := map[string]any{"age": 21.0, "city": "NYC"}
	assert.Equal(t, true, evalRow(t, "age > 18", row))
	assert.Equal(t, true, evalRow(t, "age > 18 and city == 'NYC'", row))
	assert.Equal(t, false, evalRow(t, "age < 18 or city != 'NYC'", row))
	assert.Equal(t, true, evalRow(t, "not (age < 18)", row))
}

func TestExpr_SymbolicConnectives(t *testing.T) {
	row := map[string]any{"a": 1.0, "b": 2.0}
	assert.Equal(t, true, evalRow(t, "a == 1 && b == 2", row))
	assert.Equal(t, true, evalRow(t, "a == 9 || b == 2", row))
	assert.Equal(t, true, evalRow(t, "!(a == 9)", row))
}

func TestExpr_StringConcat(t *testing.T) {
	row := map[string]any{"first": "ann", "last": "lee"}
	assert.Equal(t, "annlee", evalRow(t, "first + last", row))
}

func TestExpr_MissingComparesUnequal(t *testing.T) {
	row := map[string]any{"v": nil}
	assert.Equal(t, false, evalRow(t, "v > 1", row))
	assert.Equal(t, true, evalRow(t, "v != 1", row))
}

func TestExpr_ParseErrors(t *testing.T) {
	for _, src := range []string{
		"",
		"a =",
		"a == ",
		"(a == 1",
		"a == 'unterminated",
		"a === 1",
		"a @ b",
	} {
		_, err := parseExpr(src)
		assert.Error(t, err, "expression %q should not parse", src)
	}
}

func TestExpr_NoCallSyntax(t *testing.T) {
	// Identifiers followed by parens must not parse as calls.
	_, err := parseExpr("exec('rm -rf /')")
	assert.Error(t, err)
}

func TestExpr_TypeErrors(t *testing.T) {
	node, err := parseExpr("name * 2")
	require.NoError(t, err)
	_, err = node.eval(func(string) (any, bool) { return "bob", true })
	assert.Error(t, err)

	node, err = parseExpr("1 / 0")
	require.NoError(t, err)
	_, err = node.eval(nil)
	assert.Error(t, err)
}

func TestExpr_ColumnsCollected(t *testing.T) {
	node, err := parseExpr("a > 1 and (b + c) < d")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, node.columns(nil))
}
