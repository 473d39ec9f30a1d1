// Package path implements the hierarchical naming model shared by native
// declarations and generated surface items. A path is a non-empty ordered
// sequence of name segments: a single segment names a builtin with no owning
// package, while longer paths start with their package name and end with the
// entity's own name, with module names in between.
package path

import (
	"fmt"
	"strings"
)

// Separator joins segments in the textual form of a path.
const Separator = "."

// Path is an ordered, non-empty list of name segments.
type Path struct {
	parts []string
}

// New builds a Path from segments. It panics when called with no segments or
// an empty segment; construction sites always pass literals or parser output
// that has already been validated.
func New(parts ...string) Path {
	if len(parts) == 0 {
		panic("path: must have at least one segment")
	}
	for _, p := range parts {
		if p == "" {
			panic("path: segment can't be empty")
		}
	}
	cp := make([]string, len(parts))
	copy(cp, parts)
	return Path{parts: cp}
}

// Parse splits s on the separator and validates the result.
func Parse(s string) (Path, error) {
	parts := strings.Split(s, Separator)
	for _, p := range parts {
		if p == "" {
			return Path{}, fmt.Errorf("parse path %q: empty segment", s)
		}
	}
	return New(parts...), nil
}

// MustParse is Parse for trusted literals.
func MustParse(s string) Path {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

// IsZero reports whether p is the uninitialized zero value, which is not a
// valid path.
func (p Path) IsZero() bool { return len(p.parts) == 0 }

// Len returns the number of segments.
func (p Path) Len() int { return len(p.parts) }

// Parts returns a copy of the segments.
func (p Path) Parts() []string {
	cp := make([]string, len(p.parts))
	copy(cp, p.parts)
	return cp
}

// Last returns the entity's own name, the final segment.
func (p Path) Last() string { return p.parts[len(p.parts)-1] }

// PackageName returns the owning package name, or false for a single-segment
// builtin path.
func (p Path) PackageName() (string, bool) {
	if len(p.parts) > 1 {
		return p.parts[0], true
	}
	return "", false
}

// Parent returns the path with the last segment dropped, or false for a
// single-segment path.
func (p Path) Parent() (Path, bool) {
	if len(p.parts) < 2 {
		return Path{}, false
	}
	return New(p.parts[:len(p.parts)-1]...), true
}

// Join returns a new path with segment appended.
func (p Path) Join(segment string) Path {
	parts := append(p.Parts(), segment)
	return New(parts...)
}

// WithLast returns a copy of p whose final segment is replaced by segment.
func (p Path) WithLast(segment string) Path {
	parts := p.Parts()
	parts[len(parts)-1] = segment
	return New(parts...)
}

// Equal reports segment-wise equality.
func (p Path) Equal(other Path) bool {
	if len(p.parts) != len(other.parts) {
		return false
	}
	for i, part := range p.parts {
		if part != other.parts[i] {
			return false
		}
	}
	return true
}

// Includes reports whether other is nested anywhere below p.
func (p Path) Includes(other Path) bool {
	if other.Len() <= p.Len() {
		return false
	}
	for i, part := range p.parts {
		if other.parts[i] != part {
			return false
		}
	}
	return true
}

// IncludesDirectly reports whether other is an immediate child of p.
func (p Path) IncludesDirectly(other Path) bool {
	return p.Includes(other) && other.Len() == p.Len()+1
}

// IsChildOf reports whether p is an immediate child of parent.
func (p Path) IsChildOf(parent Path) bool {
	return parent.IncludesDirectly(p)
}

// Less orders paths lexicographically over their segments. This ordering is
// for stable presentation only and is unrelated to item identifier order.
func (p Path) Less(other Path) bool {
	n := min(len(p.parts), len(other.parts))
	for i := 0; i < n; i++ {
		if p.parts[i] != other.parts[i] {
			return p.parts[i] < other.parts[i]
		}
	}
	return len(p.parts) < len(other.parts)
}

// String returns the fully qualified textual form.
func (p Path) String() string { return strings.Join(p.parts, Separator) }

// Render formats the path for use inside currentPackage: bare for builtins,
// package-relative when the path belongs to currentPackage, fully qualified
// otherwise.
func (p Path) Render(currentPackage string) string {
	if len(p.parts) == 1 {
		return p.parts[0]
	}
	if currentPackage != "" && p.parts[0] == currentPackage {
		return strings.Join(p.parts[1:], Separator)
	}
	return p.String()
}
