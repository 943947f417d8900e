package shell

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := map[string]struct {
		line     string
		expected *Command
	}{
		"single": {
			line:     "ls",
			expected: &Command{Stages: []Stage{{Args: []string{"ls"}}}},
		},
		"pipeline-background": {
			line: "ls -l | grep foo > out.txt &",
			expected: &Command{
				Output:     "out.txt",
				Background: true,
				Stages: []Stage{
					{Args: []string{"ls", "-l"}},
					{Args: []string{"grep", "foo"}},
				},
			},
		},
		"three-stages": {
			line: "cat < in.txt | tr a-z A-Z | wc -c",
			expected: &Command{
				Input: "in.txt",
				Stages: []Stage{
					{Args: []string{"cat"}},
					{Args: []string{"tr", "a-z", "A-Z"}},
					{Args: []string{"wc", "-c"}},
				},
			},
		},
		"redirect-before-pipe": {
			line: "sort > out | uniq",
			expected: &Command{
				Output: "out",
				Stages: []Stage{
					{Args: []string{"sort"}},
					{Args: []string{"uniq"}},
				},
			},
		},
		"both-redirects-any-order": {
			line: "sort>b<a&",
			expected: &Command{
				Input:      "a",
				Output:     "b",
				Background: true,
				Stages:     []Stage{{Args: []string{"sort"}}},
			},
		},
		"odd-words-are-fine": {
			line:     "grep *.go",
			expected: &Command{Stages: []Stage{{Args: []string{"grep", "*.go"}}}},
		},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			actual, err := Parse(tc.line)

			require.NoError(t, err)
			assert.Equal(t, tc.expected, actual)
		})
	}
}

func TestParseErrors(t *testing.T) {
	cases := map[string]struct {
		line     string
		expected error
		message  string
	}{
		"empty":             {"", ErrEmptyCommand, "missing command"},
		"blank":             {"   ", ErrEmptyCommand, "missing command"},
		"leading-pipe":      {"| wc", ErrEmptyCommand, `missing command near "|"`},
		"empty-stage":       {"ls | | wc", ErrEmptyCommand, `missing command near "|"`},
		"trailing-pipe":     {"ls |", ErrEmptyCommand, "missing command"},
		"only-redirect":     {"> out", ErrEmptyCommand, `missing command near ">"`},
		"only-background":   {"&", ErrEmptyCommand, `missing command near "&"`},
		"duplicate-stdout":  {"cmd > a > b", ErrDuplicateRedirect, "duplicate redirection of stdout"},
		"duplicate-stdin":   {"cmd < a < b", ErrDuplicateRedirect, "duplicate redirection of stdin"},
		"duplicate-split":   {"a > x | b > y", ErrDuplicateRedirect, "duplicate redirection of stdout"},
		"illegal-bg":        {"cmd & extra", ErrIllegalBackground, `illegal backgrounding near "extra"`},
		"double-bg":         {"cmd & &", ErrIllegalBackground, `illegal backgrounding near "&"`},
		"missing-filename":  {"cmd >", ErrMissingFilename, `missing filename near ">"`},
		"illegal-filename":  {"cmd > a*b", ErrIllegalFilename, `Illegal filename: "a*b"`},
		"operator-filename": {"cmd < |", ErrIllegalFilename, `Illegal filename: "|"`},
		"word-after-redir":  {"cmd > out extra", ErrUnexpectedToken, `unexpected token near "extra"`},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			cmd, err := Parse(tc.line)

			assert.Nil(t, cmd)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.expected), "expected %v, got %v", tc.expected, err)
			assert.Equal(t, tc.message, err.Error())

			var parseErr *ParseError
			assert.True(t, errors.As(err, &parseErr))
		})
	}
}

func TestRoundTrip(t *testing.T) {
	lines := []string{
		"ls",
		"ls -l | grep foo > out.txt &",
		"cat<in|tr a-z A-Z|wc -c>out",
		"   sort    -r   <   a/b_c.txt   ",
		"a | b | c | d | e &",
		"make -j4 > build.log",
	}

	for _, line := range lines {
		t.Run(line, func(t *testing.T) {
			first, err := Parse(line)
			require.NoError(t, err)

			second, err := Parse(first.String())
			require.NoError(t, err)

			assert.Equal(t, first, second)
			assert.Len(t, second.Stages, len(first.Stages))
		})
	}
}
