// Package shell turns command lines into pipelines.
//
// The accepted language is deliberately small:
//
//	line     := pipeline [ redir ]* [ '&' ]
//	pipeline := word+ ( '|' word+ )*
//	redir    := '<' filename | '>' filename
//
// There is no quoting, expansion or compound command support; words are runs
// of bytes without whitespace or any of | & < >.
package shell
