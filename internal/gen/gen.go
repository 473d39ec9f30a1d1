// Package gen runs the generation stage: FFI wrappers that passed at least
// one compatibility check become surface items, placed in the package
// namespace with collision-free names and fully derived boundary types.
// Rendering the surface source text is a separate concern outside this
// package.
package gen

import (
	"fmt"
	"strings"

	"github.com/jward/bindery/internal/db"
	"github.com/jward/bindery/internal/path"
	"github.com/jward/bindery/internal/typemap"
)

// Generator runs surface generation for one database.
type Generator struct {
	database *db.Database
	// flagsEnums maps snake-cased native flags-enum paths to their surface
	// paths, so matching parameter spellings pick up the flags conversion.
	flagsEnums map[string]path.Path
}

// NewGenerator creates a Generator.
func NewGenerator(database *db.Database) *Generator {
	return &Generator{database: database}
}

// Run generates surface items for every checked, unprocessed FFI wrapper.
// Item-level failures are collected; they never abort the stage.
func (g *Generator) Run() error {
	if err := g.ensureRoot(); err != nil {
		return err
	}
	if err := g.generateFlagsTypes(); err != nil {
		return err
	}

	var errs []error
	for _, item := range g.database.FfiItemsMut() {
		if item.IsProcessed || !item.Checks.AnyPassed() {
			continue
		}
		var err error
		switch payload := item.Payload.(type) {
		case db.WrapperFunction:
			err = g.generateFunction(item, payload)
		case db.SlotWrapper:
			err = g.generateSlotType(item, payload)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("ffi item #%s: %w", item.ID, err))
			continue
		}
		item.IsProcessed = true
	}
	if len(errs) > 0 {
		return fmt.Errorf("generation had %d error(s): %w", len(errs), errs[0])
	}
	return nil
}

// ensureRoot inserts the package root module; a duplicate insert is a
// counted no-op.
func (g *Generator) ensureRoot() error {
	root := &db.SurfaceItem{Payload: db.Module{
		ModulePath: path.New(g.database.PackageName()),
		Root:       true,
	}}
	return g.database.AddSurface(root)
}

// generateFlagsTypes creates a FlagsType surface item for every native
// flags-enum declaration, and indexes them for parameter matching.
func (g *Generator) generateFlagsTypes() error {
	g.flagsEnums = make(map[string]path.Path)
	for _, item := range g.database.NativeItems() {
		decl, ok := item.Payload.(db.TypeDecl)
		if !ok || decl.Kind != db.TypeFlagsEnum {
			continue
		}
		surfacePath, err := g.ensureModules(decl.Path.Parts()[:decl.Path.Len()-1])
		if err != nil {
			return err
		}
		flagsPath := surfacePath.Join(typemap.SnakeCase(decl.Path.Last()))
		g.flagsEnums[strings.Join(decl.Path.Parts(), "::")] = flagsPath
		item := &db.SurfaceItem{Payload: db.FlagsType{FlagsPath: flagsPath, Enum: decl.Path}}
		if err := g.database.AddSurface(item); err != nil {
			return err
		}
	}
	return nil
}

// ensureModules creates the module chain for the snake-cased native scope
// segments and returns the resulting surface path, rooted at the package.
func (g *Generator) ensureModules(nativeScope []string) (path.Path, error) {
	current := path.New(g.database.PackageName())
	for _, segment := range nativeScope {
		current = current.Join(typemap.SnakeCase(segment))
		if g.database.FindSurfaceItem(current) != nil {
			continue
		}
		item := &db.SurfaceItem{Payload: db.Module{ModulePath: current}}
		if err := g.database.AddSurface(item); err != nil {
			return path.Path{}, err
		}
	}
	return current, nil
}

// ensureStruct creates the wrapper struct for a native class, with the
// module chain above it, and returns the struct's surface path.
func (g *Generator) ensureStruct(classPath path.Path, origin db.FfiItemID) (path.Path, error) {
	parts := classPath.Parts()
	modulePath, err := g.ensureModules(parts[:len(parts)-1])
	if err != nil {
		return path.Path{}, err
	}
	structPath := modulePath.Join(typemap.SnakeCase(classPath.Last()))
	if existing := g.database.FindSurfaceItem(structPath); existing != nil {
		return structPath, nil
	}
	item := &db.SurfaceItem{Payload: db.Struct{StructPath: structPath, FfiOrigin: origin}}
	if err := g.database.AddSurface(item); err != nil {
		return path.Path{}, err
	}
	return structPath, nil
}

func (g *Generator) generateFunction(item *db.FfiItem, payload db.WrapperFunction) error {
	pkg := g.database.PackageName()

	// Place the function: members hang off their class struct, free
	// functions off the module chain.
	var parent path.Path
	var err error
	sourceParts := payload.SourcePath.Parts()
	isMember := payload.Kind != db.FreeFunction && len(sourceParts) > 1
	if isMember {
		classPath, _ := payload.SourcePath.Parent()
		parent, err = g.ensureStruct(classPath, item.ID)
	} else {
		parent, err = g.ensureModules(sourceParts[:len(sourceParts)-1])
	}
	if err != nil {
		return err
	}

	ret := g.finalType(payload.ReturnType, pkg)
	params := make([]typemap.FinalType, len(payload.Params))
	for i, p := range payload.Params {
		final := g.finalType(p.Type, pkg)
		// The receiver crosses as a raw pointer but reads as a borrow.
		if i == 0 && p.Name == "self" {
			if converted, convErr := final.PointerToBorrow(strings.Contains(p.Type, "const")); convErr == nil {
				final = converted
			}
		}
		params[i] = final
	}
	if payload.Kind == db.Constructor {
		// Constructors hand back an owning handle over the heap pointer.
		if pointee, ok := typemap.Pointee(ret.Surface); ok && typemap.IsPointer(ret.Surface) {
			box := typemap.Named{Path: path.MustParse("std.Box"), Args: []typemap.Type{pointee}}
			ret = ret.WithConversion(box, typemap.ConversionBoxFromPtr)
		}
	}

	// A reference return borrows from the receiver; both sides share one
	// elided lifetime name.
	if strings.HasSuffix(strings.TrimSpace(payload.ReturnType), "&") &&
		len(params) > 0 && typemap.IsBorrow(params[0].Surface) {
		if converted, convErr := ret.PointerToBorrow(strings.Contains(payload.ReturnType, "const")); convErr == nil {
			converted.Surface = typemap.WithLifetime(converted.Surface, "a")
			ret = converted
			params[0].Surface = typemap.WithLifetime(params[0].Surface, "a")
		}
	}

	unsafe := ret.Surface.Unsafe()
	for _, p := range params {
		unsafe = unsafe || p.Surface.Unsafe()
	}

	desired := parent.Join(g.surfaceName(payload))
	funcPath := g.disambiguate(desired, params, parent)

	return g.database.AddSurface(&db.SurfaceItem{Payload: db.Function{
		FuncPath:  funcPath,
		FfiOrigin: item.ID,
		Return:    ret,
		Params:    params,
		Unsafe:    unsafe,
	}})
}

// finalType builds the identity triple for a C spelling, honoring known
// flags enums with the integer-from-flags conversion.
func (g *Generator) finalType(spelling, pkg string) typemap.FinalType {
	trimmed := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(spelling), "const "))
	if flagsPath, ok := g.flagsEnums[trimmed]; ok {
		ffi := typemap.Named{Path: path.New("int32")}
		return typemap.Identity(ffi).WithConversion(
			typemap.Named{Path: flagsPath}, typemap.ConversionIntFromFlags)
	}
	return typemap.Identity(mapCType(spelling, pkg))
}

func (g *Generator) surfaceName(payload db.WrapperFunction) string {
	switch payload.Kind {
	case db.Constructor:
		return "new"
	case db.Destructor:
		return "destroy"
	default:
		return typemap.SnakeCase(payload.SourcePath.Last())
	}
}

// disambiguate resolves overload collisions: an occupied desired path first
// tries a caption suffix keyed by the last parameter's surface type, then
// falls back to numeric probing.
func (g *Generator) disambiguate(desired path.Path, params []typemap.FinalType, context path.Path) path.Path {
	if g.database.FindSurfaceItem(desired) == nil {
		return desired
	}
	if len(params) > 0 {
		caption := typemap.Caption(params[len(params)-1].Surface, context)
		captioned := desired.WithLast(desired.Last() + "_" + caption)
		if g.database.FindSurfaceItem(captioned) == nil {
			return captioned
		}
		return g.database.MakeUniquePath(captioned)
	}
	return g.database.MakeUniquePath(desired)
}

// generateSlotType turns a slot wrapper into an adapter struct beside the
// class it serves.
func (g *Generator) generateSlotType(item *db.FfiItem, payload db.SlotWrapper) error {
	parts := payload.ClassPath.Parts()
	modulePath, err := g.ensureModules(parts[:len(parts)-1])
	if err != nil {
		return err
	}
	desired := modulePath.Join("slot_" + typemap.SnakeCase(payload.ClassPath.Last()))
	slotPath := g.database.MakeUniquePath(desired)
	return g.database.AddSurface(&db.SurfaceItem{Payload: db.Struct{
		StructPath: slotPath,
		FfiOrigin:  item.ID,
	}})
}

func snakeParts(parts []string) []string {
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = typemap.SnakeCase(p)
	}
	return out
}
