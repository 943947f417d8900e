package shell

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func ExampleTokenize() {
	for _, tok := range Tokenize("ls -l | grep foo > out.txt &") {
		fmt.Printf("%s(%s) ", tok.Kind, tok)
	}
	fmt.Println()

	// Output: word(ls) word(-l) pipe(|) word(grep) word(foo) redirect-out(>) word(out.txt) background(&)
}

func TestNextToken(t *testing.T) {
	cases := map[string]struct {
		input    string
		expected Token
		consumed int
	}{
		"empty":           {"", Token{}, 0},
		"only-space":      {" \t\n", Token{}, 0},
		"word":            {"ls", Token{Word, "ls"}, 2},
		"leading-space":   {"   ls -l", Token{Word, "ls"}, 5},
		"operator":        {" |grep", Token{Pipe, "|"}, 2},
		"glued-operator":  {"a>b", Token{Word, "a"}, 1},
		"redirect-in":     {"<in", Token{RedirectIn, "<"}, 1},
		"background":      {"&", Token{Background, "&"}, 1},
		"vertical-tab":    {"\v\fx", Token{Word, "x"}, 3},
		"punctuated-word": {"a/b_c.txt rest", Token{Word, "a/b_c.txt"}, 9},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			tok, n := NextToken(tc.input)

			assert.Equal(t, tc.expected, tok)
			assert.Equal(t, tc.consumed, n)
		})
	}
}

func TestTokenize(t *testing.T) {
	cases := map[string]struct {
		input    string
		expected []string
	}{
		"empty":          {"", nil},
		"blank":          {"    ", nil},
		"pipeline":       {"ls -l | grep foo > out.txt &", []string{"ls", "-l", "|", "grep", "foo", ">", "out.txt", "&"}},
		"no-spaces":      {"cat<in|wc>out&", []string{"cat", "<", "in", "|", "wc", ">", "out", "&"}},
		"double-pipe":    {"a||b", []string{"a", "|", "|", "b"}},
		"trailing-space": {"echo hi   ", []string{"echo", "hi"}},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			var actual []string
			for _, tok := range Tokenize(tc.input) {
				actual = append(actual, tok.Text)
			}

			assert.Equal(t, tc.expected, actual)
		})
	}
}

func TestTokenKinds(t *testing.T) {
	toks := Tokenize("a | b < c > d &")
	var kinds []TokenKind
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
	}

	assert.Equal(t, []TokenKind{Word, Pipe, Word, RedirectIn, Word, RedirectOut, Word, Background}, kinds)
	assert.False(t, toks[0].IsOperator())
	assert.True(t, toks[1].IsOperator())
}
