package composer

import (
	"strings"
	"unicode/utf8"
)

// TokenType identifies the type of token.
type TokenType int

// TokenType constants for template body tokens.
const (
	TokenText        TokenType = iota // Literal text
	TokenPlaceholder                  // {{ name }}
	TokenEOF                          // End of input
)

func (t TokenType) String() string {
	switch t {
	case TokenText:
		return "TEXT"
	case TokenPlaceholder:
		return "PLACEHOLDER"
	case TokenEOF:
		return "EOF"
	default:
		return "UNKNOWN"
	}
}

// Position tracks a location in the template body.
type Position struct {
	Line   int
	Column int
}

// Token is a lexical token of a template body.
// For placeholders Value holds the trimmed variable name and Raw the source text.
type Token struct {
	Type  TokenType
	Value string
	Raw   string
	Pos   Position
}

// Lexer splits a template body into literal text and {{ name }} placeholders.
// Malformed placeholders (empty, unterminated, containing '}' or a newline)
// are kept as literal text; the lexer never fails.
type Lexer struct {
	input    string
	pos      int
	line     int
	col      int
	lastLine int
	lastCol  int
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{
		input: input,
		line:  1,
		col:   1,
	}
}

// Tokenize converts the input into a slice of tokens ending with TokenEOF.
// Adjacent literal text is merged into a single token.
func (l *Lexer) Tokenize() []Token {
	var tokens []Token

	for {
		tok := l.nextToken()
		if tok.Type == TokenText && len(tokens) > 0 && tokens[len(tokens)-1].Type == TokenText {
			prev := &tokens[len(tokens)-1]
			prev.Value += tok.Value
			prev.Raw += tok.Raw
			continue
		}
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			break
		}
	}

	return tokens
}

// nextToken returns the next token from the input.
func (l *Lexer) nextToken() Token {
	if l.pos >= len(l.input) {
		l.markStart()
		return Token{Type: TokenEOF, Pos: l.startPosition()}
	}

	// "{{{x}}" is a literal brace followed by a placeholder.
	if l.matchString("{{") && !l.matchString("{{{") {
		if tok, ok := l.scanPlaceholder(); ok {
			return tok
		}
		// Not a placeholder: emit the delimiter as text.
		l.markStart()
		l.advance()
		l.advance()
		return Token{Type: TokenText, Value: "{{", Raw: "{{", Pos: l.startPosition()}
	}

	return l.scanText()
}

// scanText scans literal text until a possible placeholder or EOF.
func (l *Lexer) scanText() Token {
	l.markStart()
	start := l.pos

	// Always consume at least one rune so "{{{" makes progress.
	l.advance()
	for l.pos < len(l.input) {
		if l.matchString("{{") {
			break
		}
		l.advance()
	}

	text := l.input[start:l.pos]
	return Token{Type: TokenText, Value: text, Raw: text, Pos: l.startPosition()}
}

// scanPlaceholder tries to scan a {{ name }} placeholder at the current position.
// On failure the lexer state is left untouched.
func (l *Lexer) scanPlaceholder() (Token, bool) {
	rest := l.input[l.pos+2:]
	end := strings.Index(rest, "}}")
	if end < 0 {
		return Token{}, false
	}

	content := rest[:end]
	if strings.ContainsAny(content, "}\n\r") {
		return Token{}, false
	}
	name := strings.TrimSpace(content)
	if name == "" {
		return Token{}, false
	}

	l.markStart()
	raw := l.input[l.pos : l.pos+2+end+2]
	for i := 0; i < utf8.RuneCountInString(raw); i++ {
		l.advance()
	}

	return Token{Type: TokenPlaceholder, Value: name, Raw: raw, Pos: l.startPosition()}, true
}

// advance moves to the next rune, updating position tracking.
func (l *Lexer) advance() {
	if l.pos >= len(l.input) {
		return
	}

	r, size := utf8.DecodeRuneInString(l.input[l.pos:])
	l.pos += size

	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
}

// matchString checks if the input at current position matches s.
func (l *Lexer) matchString(s string) bool {
	return strings.HasPrefix(l.input[l.pos:], s)
}

// markStart records the start position for the current token.
func (l *Lexer) markStart() {
	l.lastLine = l.line
	l.lastCol = l.col
}

// startPosition returns the position where the current token started.
func (l *Lexer) startPosition() Position {
	return Position{Line: l.lastLine, Column: l.lastCol}
}
