package languages

import (
	"quarry/internal/extract"

	"github.com/smacker/go-tree-sitter/java"
)

// Java returns the extraction spec for Java source files. Method and
// constructor declarations become units; Javadoc block comments are the doc
// marker convention.
func Java() *extract.LanguageSpec {
	return &extract.LanguageSpec{
		Language: java.GetLanguage(),
		DeclQuery: `
			(method_declaration name: (identifier) @name) @method
			(constructor_declaration name: (identifier) @name) @constructor
		`,
		CallQuery: `
			(method_invocation name: (identifier) @call)
		`,
		SignatureChildTypes: []string{
			"modifiers",
			"void_type",
			"type_identifier",
			"generic_type",
			"scoped_type_identifier",
			"integral_type",
			"floating_point_type",
			"boolean_type",
			"array_type",
			"identifier",
			"formal_parameters",
		},
		CommentNodeType: "block_comment",
		DocMarker:       "/**",
		Extensions:      []string{"java"},
	}
}

// RegisterJava adds the Java spec to a registry.
func RegisterJava(r *extract.Registry) {
	r.Register(Java())
}
