package syntax

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLanguageForExt(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, "go", r.LanguageForExt(".go"))
	assert.Equal(t, "python", r.LanguageForExt(".PY"))
	assert.Equal(t, "", r.LanguageForExt(".unknown"))
}

func TestRegistryUnknownLanguageIsNoop(t *testing.T) {
	r := NewRegistry()
	p := r.Provider("cobol")
	assert.Equal(t, "cobol", p.Language())
	assert.False(t, p.IsAcceptableParent("anything"))
	_, err := p.Parse([]byte("IDENTIFICATION DIVISION."))
	require.Error(t, err)
}

func TestGoProviderParsesAndFindsFunction(t *testing.T) {
	r := NewRegistry()
	p := r.Provider("go")
	require.NotNil(t, p)

	src := []byte("package main\n\nfunc add(a, b int) int {\n\treturn a + b\n}\n")
	tree, err := p.Parse(src)
	require.NoError(t, err)
	require.NotNil(t, tree)

	node := p.FindRelatedCodeNode(tree, 3, 1)
	require.NotNil(t, node, "line inside function body should resolve to the enclosing function")
	assert.Equal(t, "function_declaration", node.Kind())
}

func TestGoProviderAcceptableParents(t *testing.T) {
	r := NewRegistry()
	p := r.Provider("go")
	assert.True(t, p.IsAcceptableParent("function_declaration"))
	assert.True(t, p.IsAcceptableParent("method_declaration"))
	assert.False(t, p.IsAcceptableParent("if_statement"))
}

func TestRegistryIsIdempotentPerLanguage(t *testing.T) {
	r := NewRegistry()
	p1 := r.Provider("go")
	p2 := r.Provider("go")
	assert.Same(t, p1, p2, "Provider should return the same cached instance on repeat calls")
}
