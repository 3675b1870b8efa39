package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reconstruct(text string, spans []Span) string {
	runes := []rune(text)
	var b strings.Builder
	for _, s := range spans {
		b.WriteString(string(runes[s.Start:s.End]))
	}
	return b.String()
}

func longText() string {
	var b strings.Builder
	for i := 0; i < 60; i++ {
		b.WriteString("O segurado sofreu acidente de trajeto no percurso entre a residência e o trabalho. ")
		if i%7 == 6 {
			b.WriteString("\n\n")
		}
	}
	return b.String()
}

func TestSplit(t *testing.T) {
	c := New(300, 20)

	t.Run("should return nothing for empty text", func(t *testing.T) {
		assert.Empty(t, c.Split(""))
	})

	t.Run("should return short text as a single chunk", func(t *testing.T) {
		assert.Equal(t, []string{"Nada consta."}, c.Split("Nada consta."))
	})

	t.Run("should keep every chunk within the size limit", func(t *testing.T) {
		chunks := c.Split(longText())
		require.Greater(t, len(chunks), 1)
		for _, ch := range chunks {
			assert.LessOrEqual(t, utf8.RuneCountInString(ch), 300)
			assert.NotEmpty(t, ch)
		}
	})

	t.Run("should reconstruct the input once overlaps are removed", func(t *testing.T) {
		text := longText()
		spans := c.Spans(text)
		assert.Equal(t, text, reconstruct(text, spans))

		chunks := c.Split(text)
		runes := []rune(text)
		for i, s := range spans {
			assert.Equal(t, string(runes[s.OverlapStart:s.End]), chunks[i])
			assert.LessOrEqual(t, s.Start-s.OverlapStart, 20)
			if i > 0 {
				assert.Equal(t, spans[i-1].End, s.Start)
			}
		}
	})

	t.Run("should hard cut text without separators", func(t *testing.T) {
		text := strings.Repeat("á", 1000)
		spans := c.Spans(text)
		assert.Equal(t, text, reconstruct(text, spans))
		for _, ch := range c.Split(text) {
			assert.LessOrEqual(t, utf8.RuneCountInString(ch), 300)
		}
	})

	t.Run("should prefer paragraph breaks", func(t *testing.T) {
		text := strings.Repeat("a ", 100) + "\n\n" + strings.Repeat("b ", 100)
		chunks := New(300, 0).Split(text)
		require.Len(t, chunks, 2)
		assert.True(t, strings.HasSuffix(chunks[0], "\n\n"))
	})
}

func TestNew(t *testing.T) {
	t.Run("should clamp invalid parameters", func(t *testing.T) {
		c := New(0, -5)
		assert.Equal(t, DefaultMaxChars, c.maxChars)
		assert.Equal(t, 0, c.overlap)
		assert.Equal(t, 5, New(10, 50).overlap)
	})
}
