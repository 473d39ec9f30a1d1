// Package rules evaluates an optional user-supplied Risor script that
// decides, per native declaration, whether the derivation stage should wrap
// it. The script sees an `item` map and its last expression is the verdict.
package rules

import (
	"context"
	"fmt"
	"os"

	"github.com/risor-io/risor"

	"github.com/jward/bindery/internal/db"
)

// Filter holds a compiled-on-demand rules script.
type Filter struct {
	source string
	label  string
}

// Load reads a rules script from disk.
func Load(scriptPath string) (*Filter, error) {
	src, err := os.ReadFile(scriptPath)
	if err != nil {
		return nil, fmt.Errorf("load rules script: %w", err)
	}
	return &Filter{source: string(src), label: scriptPath}, nil
}

// NewFilter wraps inline script source, useful for testing.
func NewFilter(source string) *Filter {
	return &Filter{source: source, label: "<inline>"}
}

// Allow evaluates the script against one native item. The script's result is
// taken by truthiness, so `item["kind"] == "function"` or an explicit
// true/false both work.
func (f *Filter) Allow(ctx context.Context, item *db.NativeItem) (bool, error) {
	global := map[string]any{
		"path": itemPath(item.Payload),
		"kind": payloadKind(item.Payload),
	}
	result, err := risor.Eval(ctx, f.source, risor.WithGlobal("item", global))
	if err != nil {
		return false, fmt.Errorf("rules script %s: %w", f.label, err)
	}
	return result.IsTruthy(), nil
}

func itemPath(p db.NativePayload) string {
	switch p := p.(type) {
	case db.NamespaceDecl:
		return p.Path.String()
	case db.TypeDecl:
		return p.Path.String()
	case db.EnumValueDecl:
		return p.Path.String()
	case db.FunctionDecl:
		return p.Path.String()
	case db.ClassFieldDecl:
		return p.Path.String()
	case db.BaseRelationDecl:
		return p.Derived.String()
	case db.SignalArgsDecl:
		return p.Class.String()
	default:
		return ""
	}
}

func payloadKind(p db.NativePayload) string {
	switch p.(type) {
	case db.NamespaceDecl:
		return "namespace"
	case db.TypeDecl:
		return "type"
	case db.EnumValueDecl:
		return "enum_value"
	case db.FunctionDecl:
		return "function"
	case db.ClassFieldDecl:
		return "field"
	case db.BaseRelationDecl:
		return "base"
	case db.SignalArgsDecl:
		return "signal_args"
	default:
		return "unknown"
	}
}
