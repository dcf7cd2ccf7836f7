package syntax

import (
	tree_sitter_zig "github.com/tree-sitter-grammars/tree-sitter-zig/bindings/go"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_csharp "github.com/tree-sitter/tree-sitter-c-sharp/bindings/go"
	tree_sitter_cpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_php "github.com/tree-sitter/tree-sitter-php/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// build constructs the Provider for one canonical language name. The
// acceptable-parent node kinds are the smallest named construct per
// language a matched line should be grown to: a function/method body
// rather than its enclosing if-block, a class rather than its file.
func (r *Registry) build(lang string) Provider {
	switch lang {
	case "go":
		return newProvider("go", tree_sitter.NewLanguage(tree_sitter_go.Language()), goAcceptableParents)
	case "python":
		return newProvider("python", tree_sitter.NewLanguage(tree_sitter_python.Language()), pythonAcceptableParents)
	case "javascript":
		return newProvider("javascript", tree_sitter.NewLanguage(tree_sitter_javascript.Language()), jsAcceptableParents)
	case "typescript":
		return newProvider("typescript", tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript()), jsAcceptableParents)
	case "rust":
		return newProvider("rust", tree_sitter.NewLanguage(tree_sitter_rust.Language()), rustAcceptableParents)
	case "java":
		return newProvider("java", tree_sitter.NewLanguage(tree_sitter_java.Language()), javaAcceptableParents)
	case "cpp":
		return newProvider("cpp", tree_sitter.NewLanguage(tree_sitter_cpp.Language()), cppAcceptableParents)
	case "csharp":
		return newProvider("csharp", tree_sitter.NewLanguage(tree_sitter_csharp.Language()), csharpAcceptableParents)
	case "php":
		return newProvider("php", tree_sitter.NewLanguage(tree_sitter_php.LanguagePHP()), phpAcceptableParents)
	case "zig":
		return newProvider("zig", tree_sitter.NewLanguage(tree_sitter_zig.Language()), zigAcceptableParents)
	default:
		return nil
	}
}

var goAcceptableParents = []string{
	"function_declaration",
	"method_declaration",
	"type_declaration",
	"func_literal",
}

var pythonAcceptableParents = []string{
	"function_definition",
	"class_definition",
	"decorated_definition",
}

var jsAcceptableParents = []string{
	"function_declaration",
	"generator_function_declaration",
	"method_definition",
	"class_declaration",
	"arrow_function",
	"function_expression",
	"interface_declaration",
	"type_alias_declaration",
	"enum_declaration",
}

var rustAcceptableParents = []string{
	"function_item",
	"impl_item",
	"trait_item",
	"struct_item",
	"enum_item",
	"mod_item",
}

var javaAcceptableParents = []string{
	"method_declaration",
	"constructor_declaration",
	"class_declaration",
	"record_declaration",
	"interface_declaration",
	"enum_declaration",
}

var cppAcceptableParents = []string{
	"function_definition",
	"class_specifier",
	"struct_specifier",
	"enum_specifier",
	"namespace_definition",
}

var csharpAcceptableParents = []string{
	"method_declaration",
	"constructor_declaration",
	"class_declaration",
	"interface_declaration",
	"struct_declaration",
	"record_declaration",
	"enum_declaration",
	"namespace_declaration",
}

var phpAcceptableParents = []string{
	"function_definition",
	"method_declaration",
	"class_declaration",
	"interface_declaration",
	"trait_declaration",
	"enum_declaration",
}

var zigAcceptableParents = []string{
	"function_declaration",
	"variable_declaration",
}
