package extractref

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseBarePath(t *testing.T) {
	r := Parse("src/main.go")
	assert.Equal(t, Ref{Path: "src/main.go"}, r)
	assert.False(t, r.HasLineRange())
}

func TestParseSingleLine(t *testing.T) {
	r := Parse("src/main.go:42")
	assert.Equal(t, "src/main.go", r.Path)
	assert.Equal(t, 42, r.StartLine)
	assert.Equal(t, 42, r.EndLine)
	assert.True(t, r.HasLineRange())
}

func TestParseLineRange(t *testing.T) {
	r := Parse("src/main.go:10-20")
	assert.Equal(t, "src/main.go", r.Path)
	assert.Equal(t, 10, r.StartLine)
	assert.Equal(t, 20, r.EndLine)
}

func TestParseSymbolSuffix(t *testing.T) {
	r := Parse("src/lib.rs#Foo")
	assert.Equal(t, "src/lib.rs", r.Path)
	assert.Equal(t, "Foo", r.Symbol)
	assert.False(t, r.HasLineRange())
}

func TestSymbolSeparatorsAreEquivalent(t *testing.T) {
	want := "ns::A::m"
	assert.Equal(t, want, NormalizeSymbol("ns::A::m"))
	assert.Equal(t, want, NormalizeSymbol(`ns\A\m`))
	assert.Equal(t, want, NormalizeSymbol("ns.A.m"))
}

func TestParseSymbolWithNonCanonicalSeparators(t *testing.T) {
	r := Parse(`src/lib.rs#ns\A\m`)
	assert.Equal(t, "ns::A::m", r.Symbol)
}

func TestExtractFromTextFindsMultipleRefs(t *testing.T) {
	text := `Error in src/main.go:42 and also see internal/daemon/daemon.go#Start for details.
Also a bare word like "version" should not match.`
	refs := ExtractFromText(text)
	assert.Len(t, refs, 2)
	assert.Equal(t, "src/main.go", refs[0].Path)
	assert.Equal(t, 42, refs[0].StartLine)
	assert.Equal(t, "internal/daemon/daemon.go", refs[1].Path)
	assert.Equal(t, "Start", refs[1].Symbol)
}

func TestExtractFromTextDedups(t *testing.T) {
	text := "src/main.go:42 appears twice: src/main.go:42"
	refs := ExtractFromText(text)
	assert.Len(t, refs, 1)
}

func TestExtractFromTextEmpty(t *testing.T) {
	refs := ExtractFromText("no file references here at all")
	assert.Empty(t, refs)
}
