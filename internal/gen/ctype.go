package gen

import (
	"strings"

	"github.com/jward/bindery/internal/parse"
	"github.com/jward/bindery/internal/path"
	"github.com/jward/bindery/internal/typemap"
)

// primitiveTypes maps C type spellings to surface builtin names (length-1
// paths, no owning package).
var primitiveTypes = map[string]string{
	"bool":               "bool",
	"char":               "int8",
	"signed char":        "int8",
	"unsigned char":      "uint8",
	"short":              "int16",
	"unsigned short":     "uint16",
	"int":                "int32",
	"unsigned":           "uint32",
	"unsigned int":       "uint32",
	"long":               "int64",
	"unsigned long":      "uint64",
	"long long":          "int64",
	"unsigned long long": "uint64",
	"float":              "float32",
	"double":             "float64",
	"size_t":             "uintptr",
}

// mapCType derives the FFI-side surface representation of a C type
// spelling. Pointers map to raw-pointer indirections; unknown names are
// assumed to be wrapped library types and placed under packageName.
func mapCType(spelling, packageName string) typemap.Type {
	s := strings.TrimSpace(spelling)
	if s == "" || s == "void" {
		return typemap.Unit{}
	}

	// Peel one level of indirection off the right. References cross the
	// boundary as pointers; the generation stage may later re-expose them
	// as borrows.
	if strings.HasSuffix(s, "*") || strings.HasSuffix(s, "&") {
		inner := strings.TrimSpace(s[:len(s)-1])
		isConst := false
		if strings.HasSuffix(inner, "const") {
			isConst = true
			inner = strings.TrimSpace(strings.TrimSuffix(inner, "const"))
		}
		pointee := mapCType(inner, packageName)
		if _, isUnit := pointee.(typemap.Unit); isUnit {
			// void* has no pointee type to name.
			pointee = typemap.Named{Path: path.New("uint8")}
		}
		return typemap.Indirection{Kind: typemap.Pointer, Const: isConst, Pointee: pointee}
	}

	s = strings.TrimPrefix(s, "const ")
	s = strings.TrimSuffix(s, " const")
	if builtin, ok := primitiveTypes[s]; ok {
		return typemap.Named{Path: path.New(builtin)}
	}

	// A library type: snake-case its qualified name under the package.
	native := parse.QualifiedPath(s)
	parts := append([]string{packageName}, snakeParts(native.Parts())...)
	return typemap.Named{Path: path.New(parts...)}
}
