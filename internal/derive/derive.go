// Package derive produces FFI wrapper payloads from parser-sourced native
// declarations: every wrappable function becomes a C-compatible wrapper
// signature, and every signal argument list becomes a slot wrapper that will
// need emitted helper source. Deduplication against wrappers from earlier
// runs is handled by the item database.
package derive

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jward/bindery/internal/db"
)

// AllowFunc decides whether a native item should be wrapped. A nil AllowFunc
// wraps everything.
type AllowFunc func(ctx context.Context, item *db.NativeItem) (bool, error)

// Deriver runs the derivation stage against one database.
type Deriver struct {
	database *db.Database
	allow    AllowFunc

	// claimed maps wrapper names to their payloads, seeded with whatever
	// earlier runs persisted, so overloads get distinct C names while a
	// re-derived identical wrapper keeps its original name.
	claimed map[string]db.FfiPayload
}

// NewDeriver creates a Deriver. allow may be nil.
func NewDeriver(database *db.Database, allow AllowFunc) *Deriver {
	return &Deriver{database: database, allow: allow}
}

// Run derives FFI payloads for every eligible native item. Item-level
// problems are collected and reported together; they never abort the stage.
func (d *Deriver) Run(ctx context.Context) error {
	d.claimed = make(map[string]db.FfiPayload)
	for _, item := range d.database.FfiItems() {
		d.claimed[wrapperName(item.Payload)] = item.Payload
	}

	var errs []error
	for _, item := range d.database.NativeItems() {
		if item.SourceFfiItem != nil {
			// Already the product of an earlier derivation.
			continue
		}
		if d.allow != nil {
			ok, err := d.allow(ctx, item)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if !ok {
				continue
			}
		}
		switch payload := item.Payload.(type) {
		case db.FunctionDecl:
			d.database.AddFfi(d.wrapFunction(payload))
		case db.SignalArgsDecl:
			d.database.AddFfi(d.wrapSignalArgs(payload))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("derivation had %d error(s): %w", len(errs), errs[0])
	}
	return nil
}

func (d *Deriver) wrapFunction(decl db.FunctionDecl) db.WrapperFunction {
	params := make([]db.WrapperParam, 0, len(decl.Params)+1)

	classPath, hasClass := decl.Path.Parent()
	switch decl.Kind {
	case db.Method, db.Destructor:
		if hasClass {
			self := classPath.Parts()
			selfType := strings.Join(self, "::")
			if decl.IsConst {
				selfType += " const"
			}
			params = append(params, db.WrapperParam{Name: "self", Type: selfType + "*"})
		}
	}
	for i, p := range decl.Params {
		name := p.Name
		if name == "" {
			name = "arg" + strconv.Itoa(i+1)
		}
		params = append(params, db.WrapperParam{Name: name, Type: p.Type})
	}

	returnType := decl.ReturnType
	switch decl.Kind {
	case db.Constructor:
		if hasClass {
			returnType = strings.Join(classPath.Parts(), "::") + "*"
		}
	case db.Destructor:
		returnType = "void"
	}

	wrapper := db.WrapperFunction{
		SourcePath: decl.Path,
		Kind:       decl.Kind,
		ReturnType: returnType,
		Params:     params,
	}
	wrapper.CName = d.claimName(flatName(decl.Path.Parts()), func(name string) db.FfiPayload {
		w := wrapper
		w.CName = name
		return w
	})
	return wrapper
}

func (d *Deriver) wrapSignalArgs(decl db.SignalArgsDecl) db.SlotWrapper {
	slot := db.SlotWrapper{
		ClassPath: decl.Class,
		ArgTypes:  decl.ArgTypes,
	}
	slot.CName = d.claimName(flatName(append(decl.Class.Parts(), "slot")), func(name string) db.FfiPayload {
		s := slot
		s.CName = name
		return s
	})
	return slot
}

// claimName returns base, or base suffixed with the first free ordinal when
// overloads collide. A collision with a structurally identical wrapper from
// an earlier run resolves to the same name, so the database's dedup catches
// the re-derivation instead of minting an endless chain of aliases.
func (d *Deriver) claimName(base string, withName func(string) db.FfiPayload) string {
	name := base
	for number := 2; ; number++ {
		existing, taken := d.claimed[name]
		if !taken || existing.Equal(withName(name)) {
			break
		}
		name = base + "_" + strconv.Itoa(number)
	}
	d.claimed[name] = withName(name)
	return name
}

func flatName(parts []string) string {
	return "ctw_" + strings.Join(parts, "_")
}

func wrapperName(p db.FfiPayload) string {
	switch p := p.(type) {
	case db.WrapperFunction:
		return p.CName
	case db.SlotWrapper:
		return p.CName
	default:
		return ""
	}
}
