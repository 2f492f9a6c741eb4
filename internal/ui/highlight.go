package ui

import (
	. "maragu.dev/gomponents"
	. "maragu.dev/gomponents/html"

	"sqlpanel/internal/sqlfmt"
)

// highlightSQL renders statement with one span per significant token.
func highlightSQL(statement string) Node {
	tokens := sqlfmt.Tokenize(statement)
	nodes := make([]Node, 0, len(tokens))
	for _, tok := range tokens {
		class := tokenClass(tok.Kind)
		if class == "" {
			nodes = append(nodes, Text(tok.Text))
			continue
		}
		nodes = append(nodes, Span(Class(class), Text(tok.Text)))
	}
	return Pre(Class("sql"), Code(Group(nodes)))
}

func tokenClass(kind sqlfmt.TokenKind) string {
	switch kind {
	case sqlfmt.KindKeyword:
		return "tok-kw"
	case sqlfmt.KindString:
		return "tok-str"
	case sqlfmt.KindNumber:
		return "tok-num"
	case sqlfmt.KindComment:
		return "tok-cmt"
	case sqlfmt.KindPlaceholder:
		return "tok-ph"
	case sqlfmt.KindQuotedIdent:
		return "tok-id"
	default:
		return ""
	}
}
