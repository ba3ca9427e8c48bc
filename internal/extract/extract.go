package extract

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// Kind classifies an extracted unit.
type Kind string

const (
	KindMethod      Kind = "method"
	KindConstructor Kind = "constructor"
)

// Unit is one method or constructor extracted from a source file.
// Units are immutable after extraction; a re-index replaces them wholesale.
type Unit struct {
	ID         string
	Kind       Kind
	Name       string
	Signature  string
	Body       string
	DocComment string
	Calls      []string
	FilePath   string
	StartLine  int
	EndLine    int
}

// HasDoc reports whether a documentation comment was attached.
func (u *Unit) HasDoc() bool { return u.DocComment != "" }

// ParseError indicates a source file could not be parsed by the grammar.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("parse %s: source contains syntax errors", e.Path)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Extract parses src with the given language spec and returns all method and
// constructor units in source order. It fails with *ParseError only when the
// grammar cannot parse the source; semantically odd but syntactically valid
// code always extracts.
func Extract(spec *LanguageSpec, path string, src []byte) ([]Unit, error) {
	spec.init()

	parser := sitter.NewParser()
	parser.SetLanguage(spec.Language)
	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, &ParseError{Path: path}
	}

	q, err := sitter.NewQuery([]byte(spec.DeclQuery), spec.Language)
	if err != nil {
		return nil, fmt.Errorf("compile declaration query: %w", err)
	}
	defer q.Close()

	callQuery, err := sitter.NewQuery([]byte(spec.CallQuery), spec.Language)
	if err != nil {
		return nil, fmt.Errorf("compile call query: %w", err)
	}
	defer callQuery.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(q, root)

	type decl struct {
		node *sitter.Node
		kind Kind
		name string
	}
	var decls []decl
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		var d decl
		for _, cap := range m.Captures {
			switch q.CaptureNameForId(cap.Index) {
			case "method":
				d.node, d.kind = cap.Node, KindMethod
			case "constructor":
				d.node, d.kind = cap.Node, KindConstructor
			case "name":
				d.name = cap.Node.Content(src)
			}
		}
		if d.node != nil {
			decls = append(decls, d)
		}
	}

	sort.SliceStable(decls, func(i, j int) bool {
		return decls[i].node.StartByte() < decls[j].node.StartByte()
	})

	seen := make(map[string]bool, len(decls))
	units := make([]Unit, 0, len(decls))
	for _, d := range decls {
		sig := signature(spec, d.node, src)
		startLine := int(d.node.StartPoint().Row) + 1

		id := unitID(d.kind, sig)
		// Identical signatures within one file get a positional suffix so
		// ids stay distinct.
		if seen[id] {
			id = fmt.Sprintf("%s_%d", id, startLine)
		}
		seen[id] = true

		units = append(units, Unit{
			ID:         id,
			Kind:       d.kind,
			Name:       d.name,
			Signature:  sig,
			Body:       string(src[d.node.StartByte():d.node.EndByte()]),
			DocComment: docComment(spec, d.node, src),
			Calls:      calls(callQuery, d.node, src),
			FilePath:   path,
			StartLine:  startLine,
			EndLine:    int(d.node.EndPoint().Row) + 1,
		})
	}

	return units, nil
}

// signature renders the declaration header (modifiers, return type, name,
// parameter list) as a single whitespace-collapsed string.
func signature(spec *LanguageSpec, node *sitter.Node, src []byte) string {
	var parts []string
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if spec.signatureTypes[child.Type()] {
			parts = append(parts, child.Content(src))
		}
	}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

var nonSlug = regexp.MustCompile(`[^a-z0-9_]`)

// unitID derives a stable identifier from the kind and normalized signature.
// Re-parsing identical source always yields the same id.
func unitID(kind Kind, sig string) string {
	s := strings.ToLower(string(kind) + " " + sig)
	s = strings.Join(strings.Fields(s), "_")
	return nonSlug.ReplaceAllString(s, "")
}

// docComment returns the documentation comment attached to a declaration.
// The lookup is deliberately local: only the immediately preceding sibling is
// considered, it must be a block comment starting with the doc marker, and a
// blank line between the comment and the declaration detaches it.
func docComment(spec *LanguageSpec, node *sitter.Node, src []byte) string {
	parent := node.Parent()
	if parent == nil {
		return ""
	}

	idx := -1
	for i := 0; i < int(parent.ChildCount()); i++ {
		child := parent.Child(i)
		if child.StartByte() == node.StartByte() &&
			child.EndByte() == node.EndByte() &&
			child.Type() == node.Type() {
			idx = i
			break
		}
	}
	if idx <= 0 {
		return ""
	}

	prev := parent.Child(idx - 1)
	if prev.Type() != spec.CommentNodeType {
		return ""
	}
	text := prev.Content(src)
	if !strings.HasPrefix(text, spec.DocMarker) {
		return ""
	}
	// More than one newline between comment and declaration means a blank
	// line separates them.
	gap := string(src[prev.EndByte():node.StartByte()])
	if strings.Count(gap, "\n") > 1 {
		return ""
	}
	return text
}

// calls returns the invoked identifier of every call expression in the
// declaration's subtree, in source order, duplicates preserved. Receivers are
// discarded: obj.foo() yields "foo".
func calls(q *sitter.Query, node *sitter.Node, src []byte) []string {
	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(q, node)

	type site struct {
		name  string
		start uint32
	}
	var sites []site
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		for _, cap := range m.Captures {
			sites = append(sites, site{
				name:  cap.Node.Content(src),
				start: cap.Node.StartByte(),
			})
		}
	}
	sort.SliceStable(sites, func(i, j int) bool { return sites[i].start < sites[j].start })

	names := make([]string, len(sites))
	for i, s := range sites {
		names[i] = s.name
	}
	return names
}
