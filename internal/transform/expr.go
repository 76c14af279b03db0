package transform

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// The filter and mutate steps evaluate user-supplied expressions against
// column values. The grammar is deliberately constrained: comparisons,
// arithmetic, boolean connectives, column references and literals. There
// is no call syntax, no indexing and no way to reach outside the row.
//
//	category == 'A' and value > 100
//	price * quantity
//	(a + b) / 2

type exprNode interface {
	eval(row rowLookup) (any, error)
	// columns appends the column names the node references.
	columns(dst []string) []string
}

// rowLookup resolves a column reference for the current row.
type rowLookup func(name string) (any, bool)

type litNode struct{ val any }

func (n litNode) eval(rowLookup) (any, error) { return n.val, nil }
func (n litNode) columns(dst []string) []string { return dst }

type colNode struct{ name string }

func (n colNode) eval(row rowLookup) (any, error) {
	v, ok := row(n.name)
	if !ok {
		return nil, fmt.Errorf("unknown column %q", n.name)
	}
	return v, nil
}
func (n colNode) columns(dst []string) []string { return append(dst, n.name) }

type unaryNode struct {
	op   string
	expr exprNode
}

func (n unaryNode) eval(row rowLookup) (any, error) {
	v, err := n.expr.eval(row)
	if err != nil {
		return nil, err
	}
	switch n.op {
	case "-":
		f, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("unary - needs a number, got %T", v)
		}
		return -f, nil
	case "not":
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("not needs a boolean, got %T", v)
		}
		return !b, nil
	}
	return nil, fmt.Errorf("unknown unary operator %q", n.op)
}
func (n unaryNode) columns(dst []string) []string { return n.expr.columns(dst) }

type binaryNode struct {
	op          string
	left, right exprNode
}

func (n binaryNode) columns(dst []string) []string {
	return n.right.columns(n.left.columns(dst))
}

func (n binaryNode) eval(row rowLookup) (any, error) {
	// Short-circuit the boolean connectives.
	if n.op == "and" || n.op == "or" {
		lb, err := evalBool(n.left, row)
		if err != nil {
			return nil, err
		}
		if n.op == "and" && !lb {
			return false, nil
		}
		if n.op == "or" && lb {
			return true, nil
		}
		return evalBool(n.right, row)
	}

	lv, err := n.left.eval(row)
	if err != nil {
		return nil, err
	}
	rv, err := n.right.eval(row)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case "+", "-", "*", "/", "%":
		return arith(n.op, lv, rv)
	case "==", "!=", "<", "<=", ">", ">=":
		return compare(n.op, lv, rv)
	}
	return nil, fmt.Errorf("unknown operator %q", n.op)
}

func evalBool(n exprNode, row rowLookup) (bool, error) {
	v, err := n.eval(row)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("expected a boolean, got %T", v)
	}
	return b, nil
}

func arith(op string, lv, rv any) (any, error) {
	if op == "+" {
		if ls, ok := lv.(string); ok {
			if rs, ok := rv.(string); ok {
				return ls + rs, nil
			}
		}
	}
	lf, lok := lv.(float64)
	rf, rok := rv.(float64)
	if !lok || !rok {
		return nil, fmt.Errorf("operator %q needs numbers, got %T and %T", op, lv, rv)
	}
	switch op {
	case "+":
		return lf + rf, nil
	case "-":
		return lf - rf, nil
	case "*":
		return lf * rf, nil
	case "/":
		if rf == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return lf / rf, nil
	case "%":
		if rf == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return math.Mod(lf, rf), nil
	}
	return nil, fmt.Errorf("unknown arithmetic operator %q", op)
}

func compare(op string, lv, rv any) (any, error) {
	// Missing cells compare unequal to everything.
	if lv == nil || rv == nil {
		switch op {
		case "==":
			return lv == nil && rv == nil, nil
		case "!=":
			return !(lv == nil && rv == nil), nil
		default:
			return false, nil
		}
	}
	var cmp int
	switch l := lv.(type) {
	case float64:
		r, ok := rv.(float64)
		if !ok {
			return nil, fmt.Errorf("cannot compare number with %T", rv)
		}
		switch {
		case l < r:
			cmp = -1
		case l > r:
			cmp = 1
		}
	case string:
		r, ok := rv.(string)
		if !ok {
			return nil, fmt.Errorf("cannot compare string with %T", rv)
		}
		cmp = strings.Compare(l, r)
	case bool:
		r, ok := rv.(bool)
		if !ok {
			return nil, fmt.Errorf("cannot compare boolean with %T", rv)
		}
		if op != "==" && op != "!=" {
			return nil, fmt.Errorf("booleans only support == and !=")
		}
		return (l == r) == (op == "=="), nil
	default:
		return nil, fmt.Errorf("cannot compare %T values", lv)
	}
	switch op {
	case "==":
		return cmp == 0, nil
	case "!=":
		return cmp != 0, nil
	case "<":
		return cmp < 0, nil
	case "<=":
		return cmp <= 0, nil
	case ">":
		return cmp > 0, nil
	case ">=":
		return cmp >= 0, nil
	}
	return nil, fmt.Errorf("unknown comparison %q", op)
}

// --- lexing ---

type token struct {
	kind string // num, str, ident, op, lparen, rparen, eof
	text string
}

func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		ch := src[i]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			i++
		case ch == '(':
			toks = append(toks, token{"lparen", "("})
			i++
		case ch == ')':
			toks = append(toks, token{"rparen", ")"})
			i++
		case strings.ContainsRune("+-*/%", rune(ch)):
			toks = append(toks, token{"op", string(ch)})
			i++
		case ch == '=' || ch == '!' || ch == '<' || ch == '>':
			op := string(ch)
			if i+1 < len(src) && src[i+1] == '=' {
				op += "="
				i++
			}
			i++
			if op == "=" {
				return nil, fmt.Errorf("single '=' is not valid; use '=='")
			}
			if op == "!" {
				toks = append(toks, token{"op", "not"})
				continue
			}
			toks = append(toks, token{"op", op})
		case ch == '&' || ch == '|':
			if i+1 >= len(src) || src[i+1] != ch {
				return nil, fmt.Errorf("unexpected %q", string(ch))
			}
			if ch == '&' {
				toks = append(toks, token{"op", "and"})
			} else {
				toks = append(toks, token{"op", "or"})
			}
			i += 2
		case ch == '\'' || ch == '"':
			quote := ch
			j := i + 1
			for j < len(src) && src[j] != quote {
				j++
			}
			if j >= len(src) {
				return nil, fmt.Errorf("unterminated string literal")
			}
			toks = append(toks, token{"str", src[i+1 : j]})
			i = j + 1
		case ch >= '0' && ch <= '9' || ch == '.':
			j := i
			for j < len(src) && (src[j] >= '0' && src[j] <= '9' || src[j] == '.' || src[j] == 'e' || src[j] == 'E' ||
				((src[j] == '+' || src[j] == '-') && j > i && (src[j-1] == 'e' || src[j-1] == 'E'))) {
				j++
			}
			toks = append(toks, token{"num", src[i:j]})
			i = j
		case unicode.IsLetter(rune(ch)) || ch == '_':
			j := i
			for j < len(src) && (unicode.IsLetter(rune(src[j])) || unicode.IsDigit(rune(src[j])) || src[j] == '_') {
				j++
			}
			word := src[i:j]
			switch word {
			case "and", "or", "not":
				toks = append(toks, token{"op", word})
			case "true", "True":
				toks = append(toks, token{"ident", "true"})
			case "false", "False":
				toks = append(toks, token{"ident", "false"})
			default:
				toks = append(toks, token{"ident", word})
			}
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q", string(ch))
		}
	}
	return append(toks, token{kind: "eof"}), nil
}

// --- parsing (precedence climbing) ---

var precedence = map[string]int{
	"or":  1,
	"and": 2,
	"==":  3, "!=": 3, "<": 3, "<=": 3, ">": 3, ">=": 3,
	"+": 4, "-": 4,
	"*": 5, "/": 5, "%": 5,
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }
func (p *parser) next() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

// parseExpr compiles an expression string once; the result is reused
// across every row of the dataset.
func parseExpr(src string) (exprNode, error) {
	if strings.TrimSpace(src) == "" {
		return nil, fmt.Errorf("empty expression")
	}
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	node, err := p.parseBinary(1)
	if err != nil {
		return nil, err
	}
	if p.peek().kind != "eof" {
		return nil, fmt.Errorf("unexpected %q", p.peek().text)
	}
	return node, nil
}

func (p *parser) parseBinary(minPrec int) (exprNode, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != "op" {
			return left, nil
		}
		prec, ok := precedence[t.text]
		if !ok || prec < minPrec {
			return left, nil
		}
		p.next()
		right, err := p.parseBinary(prec + 1)
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: t.text, left: left, right: right}
	}
}

func (p *parser) parseUnary() (exprNode, error) {
	t := p.peek()
	if t.kind == "op" && (t.text == "-" || t.text == "not") {
		p.next()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return unaryNode{op: t.text, expr: inner}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (exprNode, error) {
	t := p.next()
	switch t.kind {
	case "num":
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", t.text)
		}
		return litNode{val: f}, nil
	case "str":
		return litNode{val: t.text}, nil
	case "ident":
		if t.text == "true" {
			return litNode{val: true}, nil
		}
		if t.text == "false" {
			return litNode{val: false}, nil
		}
		return colNode{name: t.text}, nil
	case "lparen":
		inner, err := p.parseBinary(1)
		if err != nil {
			return nil, err
		}
		if p.next().kind != "rparen" {
			return nil, fmt.Errorf("missing closing parenthesis")
		}
		return inner, nil
	case "eof":
		return nil, fmt.Errorf("unexpected end of expression")
	}
	return nil, fmt.Errorf("unexpected %q", t.text)
}
