// Package calculator provides the built-in arithmetic evaluation tool.
//
// Expressions are evaluated by a hand-written recursive-descent parser over a
// closed grammar: numbers, + - * /, parentheses, and unary sign. There are no
// identifiers and no function calls, so provider-supplied input can never
// reach anything beyond arithmetic. Inputs containing characters outside the
// whitelist are rejected before parsing.
package calculator

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/avdreher/parley/internal/tools"
	"github.com/avdreher/parley/pkg/provider/llm"
)

// allowedChars is the exact input whitelist. Anything else is rejected with a
// fixed error payload before the parser runs.
const allowedChars = "0123456789+-*/(). "

// args is the JSON-decoded input for the tool.
type args struct {
	// Expression is the arithmetic expression, e.g. "2 + 2" or "(10 * 5) / 2".
	Expression string `json:"expression"`
}

// result is the JSON-encoded output of the tool.
type result struct {
	Expression string  `json:"expression"`
	Result     float64 `json:"result"`
}

// Tool returns the calculator tool ready for registration.
func Tool() tools.Tool {
	return tools.Tool{
		Definition: llm.ToolDefinition{
			Name:        "calculate",
			Description: "Evaluate a mathematical expression. Supports +, -, *, /, parentheses.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"expression": map[string]any{
						"type":        "string",
						"description": "The mathematical expression to evaluate, e.g. '2 + 2' or '(10 * 5) / 2'",
					},
				},
				"required": []string{"expression"},
			},
		},
		Handler: calculate,
	}
}

func calculate(_ context.Context, rawArgs string) (string, error) {
	var a args
	if err := json.Unmarshal([]byte(rawArgs), &a); err != nil {
		return "", fmt.Errorf("invalid calculator arguments: %v", err)
	}

	for _, c := range a.Expression {
		if !strings.ContainsRune(allowedChars, c) {
			return tools.ErrorPayload("Invalid characters in expression"), nil
		}
	}

	value, err := Eval(a.Expression)
	if err != nil {
		return tools.ErrorPayload(err.Error()), nil
	}

	out, err := json.Marshal(result{Expression: a.Expression, Result: value})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Eval parses and evaluates an arithmetic expression over the grammar
//
//	expr    := term { ('+'|'-') term }
//	term    := unary { ('*'|'/') unary }
//	unary   := { ('+'|'-') } primary
//	primary := number | '(' expr ')'
//
// Whitespace between tokens is ignored. Returns a descriptive error for
// malformed input and for division by zero.
func Eval(expr string) (float64, error) {
	p := &parser{input: expr}
	v, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipSpaces()
	if p.pos < len(p.input) {
		return 0, fmt.Errorf("unexpected character %q at position %d", p.input[p.pos], p.pos)
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, fmt.Errorf("expression result is not a finite number")
	}
	return v, nil
}

// parser is a cursor over the expression bytes. The character whitelist has
// already run, so only digits, operators, parentheses, dots, and spaces can
// appear here.
type parser struct {
	input string
	pos   int
}

func (p *parser) skipSpaces() {
	for p.pos < len(p.input) && p.input[p.pos] == ' ' {
		p.pos++
	}
}

// peek returns the next non-space byte without consuming it, or 0 at the end
// of input.
func (p *parser) peek() byte {
	p.skipSpaces()
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

func (p *parser) parseExpr() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case '+':
			p.pos++
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left += right
		case '-':
			p.pos++
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left -= right
		default:
			return left, nil
		}
	}
}

func (p *parser) parseTerm() (float64, error) {
	left, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case '*':
			p.pos++
			right, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			left *= right
		case '/':
			p.pos++
			right, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			left /= right
		default:
			return left, nil
		}
	}
}

func (p *parser) parseUnary() (float64, error) {
	sign := 1.0
	for {
		switch p.peek() {
		case '+':
			p.pos++
		case '-':
			p.pos++
			sign = -sign
		default:
			v, err := p.parsePrimary()
			if err != nil {
				return 0, err
			}
			return sign * v, nil
		}
	}
}

func (p *parser) parsePrimary() (float64, error) {
	c := p.peek()
	switch {
	case c == '(':
		p.pos++
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		if p.peek() != ')' {
			return 0, fmt.Errorf("missing closing parenthesis at position %d", p.pos)
		}
		p.pos++
		return v, nil

	case c >= '0' && c <= '9', c == '.':
		return p.parseNumber()

	case c == 0:
		return 0, fmt.Errorf("unexpected end of expression")

	default:
		return 0, fmt.Errorf("unexpected character %q at position %d", c, p.pos)
	}
}

func (p *parser) parseNumber() (float64, error) {
	start := p.pos
	seenDot := false
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c == '.' {
			if seenDot {
				return 0, fmt.Errorf("invalid number %q at position %d", p.input[start:p.pos+1], start)
			}
			seenDot = true
			p.pos++
			continue
		}
		if c < '0' || c > '9' {
			break
		}
		p.pos++
	}

	lit := p.input[start:p.pos]
	if lit == "." || lit == "" {
		return 0, fmt.Errorf("invalid number at position %d", start)
	}
	v, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q at position %d", lit, start)
	}
	return v, nil
}
