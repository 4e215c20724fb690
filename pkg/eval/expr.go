package eval

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	zygo "github.com/glycerine/zygomys/zygo"
)

// ExprTimeout is the hard limit for a single expression evaluation.
const ExprTimeout = 2 * time.Second

// ExprEngine evaluates scripted expression nodes in a sandboxed zygomys
// environment. Each evaluation gets a fresh sandbox for determinism; the
// engine is safe for concurrent use.
type ExprEngine struct {
	mu         sync.Mutex
	generation uint64
}

// NewExprEngine creates a new ExprEngine.
func NewExprEngine() *ExprEngine {
	return &ExprEngine{}
}

// ExprError is a non-fatal expression failure with optional line info.
type ExprError struct {
	Line    int
	Message string
}

func (e ExprError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

type exprResult struct {
	value float64
	err   error
}

// EvalNumber evaluates a numeric expression. Numeric entries of the
// parameter bag are bound as globals so expressions can reference node
// parameters by name.
func (e *ExprEngine) EvalNumber(source string, params map[string]any) (float64, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	ch := make(chan exprResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- exprResult{err: fmt.Errorf("panic during expression evaluation: %v", r)}
			}
		}()
		v, err := e.eval(source, params)
		ch <- exprResult{value: v, err: err}
	}()

	timer := time.NewTimer(ExprTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		e.mu.Lock()
		current := e.generation
		e.mu.Unlock()
		if gen != current {
			return 0, fmt.Errorf("expression evaluation superseded by newer request")
		}
		return res.value, res.err
	case <-timer.C:
		return 0, fmt.Errorf("expression evaluation timed out after %s", ExprTimeout)
	}
}

// eval runs the expression in a fresh zygomys sandbox. Sandbox mode keeps
// user expressions away from the filesystem and syscalls.
func (e *ExprEngine) eval(source string, params map[string]any) (float64, error) {
	if strings.TrimSpace(source) == "" {
		return 0, fmt.Errorf("empty expression")
	}

	env := zygo.NewZlispSandbox()
	defer env.Stop()

	full := bindingsPrelude(params) + source

	if err := env.LoadString(full); err != nil {
		return 0, parseZygoError(err)
	}

	result, err := env.Run()
	if err != nil {
		return 0, parseZygoError(err)
	}

	switch v := result.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	default:
		return 0, fmt.Errorf("expression result is not a number: %s", result.SexpString(nil))
	}
}

// bindingsPrelude turns numeric parameters into (def name value) forms
// prepended to the expression source.
func bindingsPrelude(params map[string]any) string {
	var b strings.Builder
	for name, raw := range params {
		if !validIdent(name) {
			continue
		}
		switch v := raw.(type) {
		case float64:
			fmt.Fprintf(&b, "(def %s %v)\n", name, v)
		case int:
			fmt.Fprintf(&b, "(def %s %d)\n", name, v)
		}
	}
	return b.String()
}

func validIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		letter := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
		digit := c >= '0' && c <= '9'
		if i == 0 && !letter {
			return false
		}
		if !letter && !digit {
			return false
		}
	}
	return true
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// parseZygoError extracts line information from a zygomys error when the
// message carries it.
func parseZygoError(err error) error {
	msg := err.Error()
	if m := linePattern.FindStringSubmatch(msg); m != nil {
		line, _ := strconv.Atoi(m[1])
		return ExprError{Line: line, Message: strings.TrimSpace(m[2])}
	}
	return ExprError{Message: strings.TrimSpace(msg)}
}
