package shell

import "fmt"

// TokenKind identifies the lexical class of a Token.
type TokenKind int

const (
	// Word is a command name, argument or filename.
	Word TokenKind = iota
	// Pipe is the '|' operator.
	Pipe
	// Background is the '&' operator.
	Background
	// RedirectIn is the '<' operator.
	RedirectIn
	// RedirectOut is the '>' operator.
	RedirectOut
)

func (k TokenKind) String() string {
	switch k {
	case Word:
		return "word"
	case Pipe:
		return "pipe"
	case Background:
		return "background"
	case RedirectIn:
		return "redirect-in"
	case RedirectOut:
		return "redirect-out"
	default:
		return fmt.Sprintf("TokenKind(%d)", int(k))
	}
}

// Token is a single lexical element of a command line.
type Token struct {
	Kind TokenKind
	Text string
}

func (t Token) String() string {
	return t.Text
}

// IsOperator reports whether the token is one of | & < >.
func (t Token) IsOperator() bool {
	return t.Kind != Word
}

func operatorKind(c byte) (TokenKind, bool) {
	switch c {
	case '|':
		return Pipe, true
	case '&':
		return Background, true
	case '<':
		return RedirectIn, true
	case '>':
		return RedirectOut, true
	}
	return Word, false
}

// isSpace matches the C locale isspace class.
func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

// NextToken scans the next token from s. It returns the token and the number
// of bytes of s consumed, leading whitespace included. A zero count means s
// holds no further tokens.
func NextToken(s string) (Token, int) {
	i := 0
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	if i == len(s) {
		return Token{}, 0
	}

	if kind, ok := operatorKind(s[i]); ok {
		return Token{Kind: kind, Text: s[i : i+1]}, i + 1
	}

	start := i
	for i < len(s) && !isSpace(s[i]) {
		if _, ok := operatorKind(s[i]); ok {
			break
		}
		i++
	}
	return Token{Kind: Word, Text: s[start:i]}, i
}

// Tokenize splits a line into its tokens.
func Tokenize(line string) []Token {
	var out []Token
	for {
		tok, n := NextToken(line)
		if n == 0 {
			return out
		}
		out = append(out, tok)
		line = line[n:]
	}
}
