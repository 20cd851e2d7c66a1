package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scanAll(t *testing.T, src string) []Token {
	t.Helper()
	l := New("t.nmt", src)
	var toks []Token
	for {
		tok, err := l.Next()
		require.NoError(t, err)
		toks = append(toks, tok)
		if tok.Kind == EOF {
			return toks
		}
	}
}

func TestKeywordsAndIdents(t *testing.T) {
	toks := scanAll(t, "func count var x")
	kinds := []Kind{KwFunc, Ident, KwVar, Ident, EOF}
	require.Len(t, toks, len(kinds))
	for i, k := range kinds {
		assert.Equal(t, k, toks[i].Kind)
	}
	assert.Equal(t, "count", toks[1].Text)
}

func TestIntLiteral(t *testing.T) {
	toks := scanAll(t, "12345")
	require.Len(t, toks, 2)
	assert.Equal(t, Int, toks[0].Kind)
	assert.EqualValues(t, 12345, toks[0].IntVal)
}

func TestStringLiteralWithEscapes(t *testing.T) {
	toks := scanAll(t, `"hi\n"`)
	require.Len(t, toks, 2)
	assert.Equal(t, String, toks[0].Kind)
	assert.Equal(t, "hi\n", toks[0].Text)
}

func TestCharLiteral(t *testing.T) {
	toks := scanAll(t, `'a'`)
	require.Len(t, toks, 2)
	assert.Equal(t, Char, toks[0].Kind)
	assert.EqualValues(t, 'a', toks[0].IntVal)
}

func TestTwoCharOperatorsPreferLongestMatch(t *testing.T) {
	toks := scanAll(t, "== != <= >= && ||")
	kinds := []Kind{Eq, Ne, Le, Ge, AndAnd, OrOr, EOF}
	require.Len(t, toks, len(kinds))
	for i, k := range kinds {
		assert.Equal(t, k, toks[i].Kind)
	}
}

func TestSingleCharOperatorsNotConfusedWithTwoChar(t *testing.T) {
	toks := scanAll(t, "< > = & |")
	kinds := []Kind{Lt, Gt, Assign, Amp, Pipe, EOF}
	require.Len(t, toks, len(kinds))
	for i, k := range kinds {
		assert.Equal(t, k, toks[i].Kind)
	}
}

func TestLineCommentsAreSkipped(t *testing.T) {
	toks := scanAll(t, "var x // this is a comment\n@int;")
	assert.Equal(t, KwVar, toks[0].Kind)
	assert.Equal(t, Ident, toks[1].Kind)
	assert.Equal(t, At, toks[2].Kind)
}

func TestArrayTypeAnnotationTokens(t *testing.T) {
	toks := scanAll(t, "@[int, 4]")
	kinds := []Kind{At, LBracket, Ident, Comma, Int, RBracket, EOF}
	require.Len(t, toks, len(kinds))
	for i, k := range kinds {
		assert.Equal(t, k, toks[i].Kind)
	}
}

func TestUnterminatedStringIsAnError(t *testing.T) {
	l := New("t.nmt", `"oops`)
	_, err := l.Next()
	assert.Error(t, err)
}

func TestUnexpectedCharacterIsAnError(t *testing.T) {
	l := New("t.nmt", "#")
	_, err := l.Next()
	assert.Error(t, err)
}

func TestLineAndColumnTracking(t *testing.T) {
	toks := scanAll(t, "var\nx")
	assert.Equal(t, 1, toks[0].Line)
	assert.Equal(t, 2, toks[1].Line)
}
