package typemap

import (
	"strings"
	"unicode"

	"github.com/jward/bindery/internal/path"
)

// stdPackage is the surface language's own standard namespace. Types under
// it caption by bare name since the package prefix carries no information.
const stdPackage = "std"

// Caption returns an alphanumeric, identifier-safe label for t, used to
// disambiguate synthesized names such as overload-expanded wrappers. It is a
// pure function of its arguments: identical inputs always produce identical
// labels, which name-uniqueness depends on. Path segments shared with
// context are stripped to keep labels short.
func Caption(t Type, context path.Path) string {
	switch t := t.(type) {
	case Unit:
		return "unit"
	case FuncSig:
		return "fn"
	case Indirection:
		label := Caption(t.Pointee, context)
		if t.Const {
			label += "_const"
		}
		if t.Kind == Pointer {
			return label + "_ptr"
		}
		return label + "_ref"
	case Named:
		return namedCaption(t, context)
	default:
		panic("typemap: unknown type variant")
	}
}

func namedCaption(t Named, context path.Path) string {
	var name string
	parts := t.Path.Parts()
	switch {
	case len(parts) == 1:
		name = SnakeCase(parts[0])
	case parts[0] == stdPackage:
		name = SnakeCase(t.Path.Last())
	default:
		remaining := context.Parts()
		var good []string
		for _, part := range parts {
			if len(remaining) > 0 && part == remaining[0] {
				remaining = remaining[1:]
				continue
			}
			// First mismatch ends prefix stripping for the rest of the path.
			remaining = nil
			snake := SnakeCase(part)
			if len(good) == 0 || good[len(good)-1] != snake {
				good = append(good, snake)
			}
		}
		if len(good) == 0 {
			name = t.Path.Last()
		} else {
			name = strings.Join(good, "_")
		}
	}
	if len(t.Args) > 0 {
		captions := make([]string, len(t.Args))
		for i, arg := range t.Args {
			captions[i] = Caption(arg, context)
		}
		name += "_" + strings.Join(captions, "_")
	}
	return name
}

// SnakeCase lowercases a CamelCase identifier with underscore separators:
// "QStringList" becomes "q_string_list", "UTF8String" becomes "utf8_string".
func SnakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			prevLower := i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1]))
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if i > 0 && (prevLower || (unicode.IsUpper(runes[i-1]) && nextLower)) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
