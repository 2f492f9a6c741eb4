// Package sqlfmt classifies SQL statements and renders them for display.
//
// It does not parse SQL. A small lexer splits a statement into raw tokens so
// that bind placeholders can be replaced with literal values for display and
// keywords can be highlighted, without ever touching text inside string
// literals, quoted identifiers or comments.
package sqlfmt

import "strings"

// TokenKind classifies a lexical token.
type TokenKind int

// KindWhitespace and friends enumerate the token kinds produced by the lexer.
const (
	KindWhitespace  TokenKind = iota // spaces, tabs, newlines
	KindComment                      // -- line or /* block */
	KindKeyword                      // SELECT, FROM, ...
	KindIdent                        // unquoted identifier
	KindQuotedIdent                  // "identifier"
	KindString                       // 'literal'
	KindNumber                       // 123, 4.5, 1e10
	KindPlaceholder                  // ?, ?1, $1, :name, @name
	KindPunct                        // operators and punctuation
)

func (k TokenKind) String() string {
	switch k {
	case KindWhitespace:
		return "whitespace"
	case KindComment:
		return "comment"
	case KindKeyword:
		return "keyword"
	case KindIdent:
		return "ident"
	case KindQuotedIdent:
		return "quoted_ident"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindPlaceholder:
		return "placeholder"
	default:
		return "punct"
	}
}

// Token is a slice of the original statement. Concatenating the Text of all
// tokens returned for a statement reproduces it byte for byte.
type Token struct {
	Kind TokenKind
	Text string
}

var keywords = map[string]struct{}{
	"all": {}, "alter": {}, "and": {}, "as": {}, "asc": {}, "between": {},
	"by": {}, "case": {}, "cast": {}, "create": {}, "cross": {}, "delete": {},
	"desc": {}, "distinct": {}, "drop": {}, "else": {}, "end": {}, "except": {},
	"exists": {}, "explain": {}, "false": {}, "from": {}, "full": {}, "group": {},
	"having": {}, "in": {}, "inner": {}, "insert": {}, "intersect": {}, "into": {},
	"is": {}, "join": {}, "left": {}, "like": {}, "limit": {}, "not": {},
	"null": {}, "offset": {}, "on": {}, "or": {}, "order": {}, "outer": {},
	"plan": {}, "query": {}, "returning": {}, "right": {}, "select": {}, "set": {},
	"table": {}, "then": {}, "true": {}, "union": {}, "update": {}, "using": {},
	"values": {}, "when": {}, "where": {}, "with": {},
}

func isKeyword(word string) bool {
	_, ok := keywords[strings.ToLower(word)]
	return ok
}
