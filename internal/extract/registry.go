package extract

import (
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

// LanguageSpec defines the grammar and queries used to extract units from one
// language.
type LanguageSpec struct {
	Language *sitter.Language
	// DeclQuery is a tree-sitter S-expression query capturing declarations.
	// It must capture the declaration node as @method or @constructor and
	// the declared identifier as @name.
	DeclQuery string
	// CallQuery captures the invoked identifier of a call expression as @call.
	CallQuery string
	// SignatureChildTypes are the declaration child node types that make up
	// the signature header.
	SignatureChildTypes []string
	// CommentNodeType is the grammar's block comment node type.
	CommentNodeType string
	// DocMarker is the prefix distinguishing documentation comments.
	DocMarker  string
	Extensions []string

	sigOnce        sync.Once
	signatureTypes map[string]bool
}

func (s *LanguageSpec) init() {
	s.sigOnce.Do(func() {
		s.signatureTypes = make(map[string]bool, len(s.SignatureChildTypes))
		for _, t := range s.SignatureChildTypes {
			s.signatureTypes[t] = true
		}
	})
}

// Registry maps file extensions to language specs.
type Registry struct {
	mu    sync.RWMutex
	specs map[string]*LanguageSpec // extension (without dot) → spec
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{specs: make(map[string]*LanguageSpec)}
}

// Register adds a language spec for its extensions.
func (r *Registry) Register(spec *LanguageSpec) {
	spec.init()
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range spec.Extensions {
		r.specs[ext] = spec
	}
}

// Lookup returns the spec for a file path based on its extension, or nil.
func (r *Registry) Lookup(path string) *LanguageSpec {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.specs[ext]
}

// Extensions returns the set of all registered file extensions (without dot).
func (r *Registry) Extensions() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make(map[string]bool, len(r.specs))
	for ext := range r.specs {
		exts[ext] = true
	}
	return exts
}
