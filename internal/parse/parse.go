// Package parse discovers native declarations in C++ headers using
// tree-sitter. Extraction is best-effort: constructs the walker does not
// recognize are skipped, and deduplication of repeated declarations is the
// item database's job, not the parser's.
package parse

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/cpp"

	"github.com/jward/bindery/internal/db"
	"github.com/jward/bindery/internal/path"
)

// Parser extracts native declaration payloads from C++ header source.
type Parser struct {
	parser *sitter.Parser
}

// NewParser creates a Parser with the C++ grammar loaded.
func NewParser() *Parser {
	p := sitter.NewParser()
	p.SetLanguage(cpp.GetLanguage())
	return &Parser{parser: p}
}

// ParseHeader parses one header and returns the discovered declaration
// payloads in source order.
func (p *Parser) ParseHeader(ctx context.Context, src []byte) ([]db.NativePayload, error) {
	tree, err := p.parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse header: %w", err)
	}
	defer tree.Close()

	w := &walker{src: src}
	w.visitChildren(tree.RootNode(), nil)
	return w.items, nil
}

type walker struct {
	src   []byte
	items []db.NativePayload
}

func (w *walker) text(node *sitter.Node) string {
	return node.Content(w.src)
}

func (w *walker) visitChildren(node *sitter.Node, scope []string) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		w.visit(node.NamedChild(i), scope)
	}
}

func (w *walker) visit(node *sitter.Node, scope []string) {
	switch node.Type() {
	case "namespace_definition":
		w.visitNamespace(node, scope)
	case "class_specifier", "struct_specifier":
		w.visitClass(node, scope)
	case "enum_specifier":
		w.visitEnum(node, scope)
	case "function_definition", "declaration":
		w.visitFunction(node, scope, "")
	case "template_declaration":
		// Template bodies are out of scope; skip the whole subtree.
	case "preproc_ifdef", "preproc_if", "linkage_specification", "declaration_list":
		w.visitChildren(node, scope)
	}
}

func (w *walker) visitNamespace(node *sitter.Node, scope []string) {
	body := node.ChildByFieldName("body")
	name := node.ChildByFieldName("name")
	if name == nil {
		// Anonymous namespace: contents live in the enclosing scope.
		if body != nil {
			w.visitChildren(body, scope)
		}
		return
	}
	inner := append(append([]string{}, scope...), w.text(name))
	w.items = append(w.items, db.NamespaceDecl{Path: path.New(inner...)})
	if body != nil {
		w.visitChildren(body, inner)
	}
}

func (w *walker) visitClass(node *sitter.Node, scope []string) {
	name := node.ChildByFieldName("name")
	if name == nil {
		return
	}
	className := w.text(name)
	classScope := append(append([]string{}, scope...), className)
	classPath := path.New(classScope...)
	w.items = append(w.items, db.TypeDecl{Path: classPath, Kind: db.TypeClass})

	for i, base := range w.baseClasses(node) {
		w.items = append(w.items, db.BaseRelationDecl{
			Derived: classPath,
			Base:    base,
			Index:   i,
		})
	}

	body := node.ChildByFieldName("body")
	if body == nil {
		return
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		member := body.NamedChild(i)
		switch member.Type() {
		case "field_declaration":
			if findDeclaratorOfType(member, "function_declarator") != nil {
				w.visitFunction(member, classScope, className)
			} else {
				w.visitField(member, classScope)
			}
		case "function_definition", "declaration":
			w.visitFunction(member, classScope, className)
		case "class_specifier", "struct_specifier", "enum_specifier":
			w.visit(member, classScope)
		}
	}
}

// baseClasses reads the base_class_clause of a class node.
func (w *walker) baseClasses(node *sitter.Node) []path.Path {
	var bases []path.Path
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() != "base_class_clause" {
			continue
		}
		for j := 0; j < int(child.NamedChildCount()); j++ {
			b := child.NamedChild(j)
			switch b.Type() {
			case "type_identifier", "qualified_identifier", "template_type":
				bases = append(bases, QualifiedPath(w.text(b)))
			}
		}
	}
	return bases
}

func (w *walker) visitEnum(node *sitter.Node, scope []string) {
	name := node.ChildByFieldName("name")
	if name == nil {
		return
	}
	enumScope := append(append([]string{}, scope...), w.text(name))
	enumPath := path.New(enumScope...)
	w.items = append(w.items, db.TypeDecl{Path: enumPath, Kind: db.TypeEnum})

	body := node.ChildByFieldName("body")
	if body == nil {
		return
	}
	var next int64
	for i := 0; i < int(body.NamedChildCount()); i++ {
		enumerator := body.NamedChild(i)
		if enumerator.Type() != "enumerator" {
			continue
		}
		valueName := enumerator.ChildByFieldName("name")
		if valueName == nil {
			continue
		}
		value := next
		if v := enumerator.ChildByFieldName("value"); v != nil {
			if parsed, err := parseEnumValue(w.text(v)); err == nil {
				value = parsed
			}
		}
		next = value + 1
		w.items = append(w.items, db.EnumValueDecl{
			Path:  enumPath.Join(w.text(valueName)),
			Value: value,
		})
	}
}

// visitFunction handles free functions, methods, constructors and
// destructors. className is empty outside a class body.
func (w *walker) visitFunction(node *sitter.Node, scope []string, className string) {
	declarator := findDeclaratorOfType(node, "function_declarator")
	if declarator == nil {
		return
	}
	nameNode := declarator.ChildByFieldName("declarator")
	if nameNode == nil {
		return
	}
	funcName := w.text(nameNode)

	kind := db.FreeFunction
	switch {
	case className != "" && funcName == className:
		kind = db.Constructor
	case className != "" && funcName == "~"+className:
		kind = db.Destructor
		funcName = strings.TrimPrefix(funcName, "~")
	case className != "":
		kind = db.Method
	}
	if strings.ContainsAny(funcName, ":<(") {
		// Out-of-line definitions and operator templates are skipped; the
		// in-class declaration already covers them.
		return
	}

	returnType := ""
	if t := node.ChildByFieldName("type"); t != nil {
		returnType = w.text(t) + declaratorIndirection(node, w.src)
	}
	if kind == db.Constructor || kind == db.Destructor {
		returnType = ""
	}

	var params []db.ParamDecl
	if list := declarator.ChildByFieldName("parameters"); list != nil {
		for i := 0; i < int(list.NamedChildCount()); i++ {
			pd := list.NamedChild(i)
			if pd.Type() != "parameter_declaration" {
				continue
			}
			params = append(params, w.parameter(pd))
		}
	}

	w.items = append(w.items, db.FunctionDecl{
		Path:       path.New(append(append([]string{}, scope...), funcName)...),
		Kind:       kind,
		ReturnType: returnType,
		Params:     params,
		IsConst:    isConstMethod(declarator, w.src),
	})
}

func (w *walker) parameter(node *sitter.Node) db.ParamDecl {
	var spelling, name string
	if t := node.ChildByFieldName("type"); t != nil {
		spelling = w.text(t)
	}
	spelling += declaratorIndirection(node, w.src)
	if d := node.ChildByFieldName("declarator"); d != nil {
		if id := innermostIdentifier(d); id != nil {
			name = id.Content(w.src)
		}
	}
	return db.ParamDecl{Name: name, Type: spelling}
}

func (w *walker) visitField(node *sitter.Node, scope []string) {
	typeNode := node.ChildByFieldName("type")
	declarator := node.ChildByFieldName("declarator")
	if typeNode == nil || declarator == nil {
		return
	}
	id := innermostIdentifier(declarator)
	if id == nil {
		return
	}
	w.items = append(w.items, db.ClassFieldDecl{
		Path: path.New(append(append([]string{}, scope...), id.Content(w.src))...),
		Type: w.text(typeNode) + declaratorIndirection(node, w.src),
	})
}

// QualifiedPath maps a "::"-qualified native name onto path segments.
func QualifiedPath(qualified string) path.Path {
	parts := strings.Split(qualified, "::")
	cleaned := parts[:0]
	for _, part := range parts {
		if part != "" {
			cleaned = append(cleaned, part)
		}
	}
	return path.New(cleaned...)
}

// findDeclaratorOfType descends through declarator wrappers (pointers,
// references) looking for a node of the wanted type.
func findDeclaratorOfType(node *sitter.Node, wanted string) *sitter.Node {
	d := node.ChildByFieldName("declarator")
	for d != nil {
		if d.Type() == wanted {
			return d
		}
		d = d.ChildByFieldName("declarator")
	}
	return nil
}

// declaratorIndirection collects the "*" and "&" markers between the type
// and the name, so type spellings round-trip as written.
func declaratorIndirection(node *sitter.Node, src []byte) string {
	var markers strings.Builder
	d := node.ChildByFieldName("declarator")
	for d != nil {
		switch d.Type() {
		case "pointer_declarator", "abstract_pointer_declarator":
			markers.WriteByte('*')
		case "reference_declarator", "abstract_reference_declarator":
			markers.WriteByte('&')
		}
		d = d.ChildByFieldName("declarator")
	}
	return markers.String()
}

// innermostIdentifier unwraps a declarator down to its identifier node.
func innermostIdentifier(node *sitter.Node) *sitter.Node {
	for node != nil {
		switch node.Type() {
		case "identifier", "field_identifier", "destructor_name", "operator_name":
			return node
		}
		next := node.ChildByFieldName("declarator")
		if next == nil {
			// Reference declarators keep their inner declarator as a plain
			// named child.
			for i := 0; i < int(node.NamedChildCount()); i++ {
				child := node.NamedChild(i)
				if id := innermostIdentifier(child); id != nil {
					return id
				}
			}
			return nil
		}
		node = next
	}
	return nil
}

// isConstMethod reports a trailing const qualifier on a function declarator.
func isConstMethod(declarator *sitter.Node, src []byte) bool {
	for i := 0; i < int(declarator.NamedChildCount()); i++ {
		child := declarator.NamedChild(i)
		if child.Type() == "type_qualifier" && child.Content(src) == "const" {
			return true
		}
	}
	return false
}

func parseEnumValue(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return strconv.ParseInt(s[2:], 16, 64)
	}
	return strconv.ParseInt(s, 10, 64)
}
