package composer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexer_PlainText(t *testing.T) {
	input := "Hello there"
	tokens := NewLexer(input).Tokenize()

	require.Len(t, tokens, 2, "expected 2 tokens") // TEXT + EOF
	assert.Equal(t, TokenText, tokens[0].Type)
	assert.Equal(t, input, tokens[0].Value)
	assert.Equal(t, TokenEOF, tokens[1].Type)
}

func TestLexer_Placeholders(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []Token
	}{
		{
			name:  "simple",
			input: "Hi {{name}}!",
			expected: []Token{
				{Type: TokenText, Value: "Hi ", Raw: "Hi "},
				{Type: TokenPlaceholder, Value: "name", Raw: "{{name}}"},
				{Type: TokenText, Value: "!", Raw: "!"},
			},
		},
		{
			name:  "whitespace inside braces",
			input: "{{ name }}",
			expected: []Token{
				{Type: TokenPlaceholder, Value: "name", Raw: "{{ name }}"},
			},
		},
		{
			name:  "adjacent placeholders",
			input: "{{a}}{{b}}",
			expected: []Token{
				{Type: TokenPlaceholder, Value: "a", Raw: "{{a}}"},
				{Type: TokenPlaceholder, Value: "b", Raw: "{{b}}"},
			},
		},
		{
			name:  "triple braces",
			input: "{{{x}}}",
			expected: []Token{
				{Type: TokenText, Value: "{", Raw: "{"},
				{Type: TokenPlaceholder, Value: "x", Raw: "{{x}}"},
				{Type: TokenText, Value: "}", Raw: "}"},
			},
		},
		{
			name:  "unterminated",
			input: "a {{ b",
			expected: []Token{
				{Type: TokenText, Value: "a {{ b", Raw: "a {{ b"},
			},
		},
		{
			name:  "empty placeholder",
			input: "{{}} and {{  }}",
			expected: []Token{
				{Type: TokenText, Value: "{{}} and {{  }}", Raw: "{{}} and {{  }}"},
			},
		},
		{
			name:  "newline inside braces",
			input: "{{na\nme}}",
			expected: []Token{
				{Type: TokenText, Value: "{{na\nme}}", Raw: "{{na\nme}}"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := NewLexer(tt.input).Tokenize()
			require.Len(t, tokens, len(tt.expected)+1, "wrong number of tokens")

			for i, exp := range tt.expected {
				assert.Equal(t, exp.Type, tokens[i].Type, "token[%d] type", i)
				assert.Equal(t, exp.Value, tokens[i].Value, "token[%d] value", i)
				assert.Equal(t, exp.Raw, tokens[i].Raw, "token[%d] raw", i)
			}
			assert.Equal(t, TokenEOF, tokens[len(tokens)-1].Type)
		})
	}
}

func TestLexer_Position(t *testing.T) {
	tokens := NewLexer("a\n{{b}}").Tokenize()

	require.Len(t, tokens, 3)
	assert.Equal(t, Position{Line: 1, Column: 1}, tokens[0].Pos)
	assert.Equal(t, Position{Line: 2, Column: 1}, tokens[1].Pos)
}

func TestTokenType_String(t *testing.T) {
	assert.Equal(t, "TEXT", TokenText.String())
	assert.Equal(t, "PLACEHOLDER", TokenPlaceholder.String())
	assert.Equal(t, "EOF", TokenEOF.String())
	assert.Equal(t, "UNKNOWN", TokenType(99).String())
}
