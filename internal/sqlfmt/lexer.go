package sqlfmt

import "unicode"

// Lexer splits SQL input into raw tokens.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

// Tokenize returns all tokens of input.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var out []Token
	for {
		tok, ok := l.Next()
		if !ok {
			return out
		}
		out = append(out, tok)
	}
}

func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // NUL = EOF
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
}

func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) eof() bool {
	return l.pos >= len(l.input)
}

// Next returns the next token. The second result is false at end of input.
func (l *Lexer) Next() (Token, bool) {
	if l.eof() {
		return Token{}, false
	}
	start := l.pos
	kind := l.scan()
	return Token{Kind: kind, Text: l.input[start:l.pos]}, true
}

// scan advances past one token and reports its kind.
func (l *Lexer) scan() TokenKind {
	switch {
	case isSpace(l.ch):
		for !l.eof() && isSpace(l.ch) {
			l.readChar()
		}
		return KindWhitespace
	case l.ch == '-' && l.peekChar() == '-':
		for !l.eof() && l.ch != '\n' {
			l.readChar()
		}
		return KindComment
	case l.ch == '/' && l.peekChar() == '*':
		l.readChar()
		l.readChar()
		for !l.eof() {
			if l.ch == '*' && l.peekChar() == '/' {
				l.readChar()
				l.readChar()
				break
			}
			l.readChar()
		}
		return KindComment
	case l.ch == '\'':
		l.readQuoted('\'')
		return KindString
	case l.ch == '"':
		l.readQuoted('"')
		return KindQuotedIdent
	case l.ch == '?':
		l.readChar()
		l.readDigits()
		return KindPlaceholder
	case l.ch == '$' && isDigit(l.peekChar()):
		l.readChar()
		l.readDigits()
		return KindPlaceholder
	case l.ch == ':' && l.peekChar() == ':':
		l.readChar()
		l.readChar()
		return KindPunct
	case (l.ch == ':' || l.ch == '@') && isLetter(l.peekChar()):
		l.readChar()
		l.readWord()
		return KindPlaceholder
	case isLetter(l.ch) || l.ch == '_':
		start := l.pos
		l.readWord()
		if isKeyword(l.input[start:l.pos]) {
			return KindKeyword
		}
		return KindIdent
	case isDigit(l.ch):
		l.readNumber()
		return KindNumber
	default:
		l.readChar()
		return KindPunct
	}
}

// readQuoted consumes a quoted run, treating a doubled quote as an escape.
// An unterminated literal runs to end of input.
func (l *Lexer) readQuoted(quote byte) {
	l.readChar() // opening quote
	for !l.eof() {
		if l.ch == quote {
			if l.peekChar() == quote {
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar() // closing quote
			return
		}
		l.readChar()
	}
}

func (l *Lexer) readWord() {
	for !l.eof() && (isLetter(l.ch) || isDigit(l.ch) || l.ch == '_') {
		l.readChar()
	}
}

func (l *Lexer) readDigits() {
	for !l.eof() && isDigit(l.ch) {
		l.readChar()
	}
}

// readNumber reads a numeric literal (integer, decimal, or scientific).
func (l *Lexer) readNumber() {
	l.readDigits()
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar() // skip .
		l.readDigits()
	}
	if l.ch == 'e' || l.ch == 'E' {
		next := l.peekChar()
		if isDigit(next) || next == '+' || next == '-' {
			l.readChar()
			if l.ch == '+' || l.ch == '-' {
				l.readChar()
			}
			l.readDigits()
		}
	}
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\f'
}

func isLetter(ch byte) bool {
	return ch >= 0x80 || unicode.IsLetter(rune(ch))
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}
