package token

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func collect(l *Lexer) []Token {
	var toks []Token
	for {
		t := l.NextToken()
		toks = append(toks, t)
		if t.IsEOF() {
			return toks
		}
	}
}

func TestLexerBasicTokens(t *testing.T) {
	l := NewLexer([]byte("int add(int a, int b) { return a + b; }"), 0)
	toks := collect(l)

	require.Equal(t, Keyword, toks[0].Category)
	require.Equal(t, KwInt, toks[0].Kind)
	require.Equal(t, Identifier, toks[1].Category)
	require.Equal(t, "add", toks[1].Text)
	require.Equal(t, EOF, toks[len(toks)-1].Category)
}

func TestLexerPeekDoesNotConsume(t *testing.T) {
	l := NewLexer([]byte("a :: b"), 0)
	first := l.Peek(0)
	second := l.Peek(1)
	require.Equal(t, "a", first.Text)
	require.Equal(t, "::", second.Text)
	require.Equal(t, "a", l.NextToken().Text)
	require.Equal(t, "::", l.NextToken().Text)
}

func TestLexerSaveRestorePosition(t *testing.T) {
	l := NewLexer([]byte("foo bar baz"), 0)
	require.Equal(t, "foo", l.NextToken().Text)
	mark := l.SavePosition()
	require.Equal(t, "bar", l.NextToken().Text)
	require.Equal(t, "baz", l.NextToken().Text)
	l.RestorePosition(mark)
	require.Equal(t, "bar", l.NextToken().Text)
}

func TestLexerNumericLiterals(t *testing.T) {
	cases := []string{"42", "0x2A", "0b101010", "052", "42ull", "3.14f"}
	for _, src := range cases {
		l := NewLexer([]byte(src), 0)
		tok := l.NextToken()
		require.Equal(t, Literal, tok.Category, src)
		require.Equal(t, src, tok.Text, src)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	src := "int  x = 1 + 2; // trailing comment\n"
	l := NewLexer([]byte(src), 0)
	var rebuilt []byte
	last := 0
	for {
		tok := l.NextToken()
		if tok.IsEOF() {
			break
		}
		idx := indexFrom(src, tok.Text, last)
		require.GreaterOrEqual(t, idx, 0)
		rebuilt = append(rebuilt, src[last:idx+len(tok.Text)]...)
		last = idx + len(tok.Text)
	}
	require.Equal(t, src[:last], string(rebuilt))
}

func indexFrom(s, sub string, from int) int {
	for i := from; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
