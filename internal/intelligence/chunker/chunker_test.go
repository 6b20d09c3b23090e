package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leaselens/leaselens/internal/infrastructure/logging"
	"github.com/leaselens/leaselens/pkg/errors"
)

func newChunker(t *testing.T, maxTokens int) *Chunker {
	t.Helper()
	c, err := New(maxTokens, logging.NewNopLogger())
	require.NoError(t, err)
	return c
}

func TestNew_RejectsNonPositiveBudget(t *testing.T) {
	_, err := New(0, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeChunkBudgetInvalid))
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 0, EstimateTokens("abc"))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 25, EstimateTokens(strings.Repeat("a", 100)))
}

func TestSplit_EmptyInput(t *testing.T) {
	c := newChunker(t, 100)
	assert.Empty(t, c.Split(""))
	assert.Empty(t, c.Split("   \n\n  \n\n"))
}

func TestSplit_SingleSmallDocument(t *testing.T) {
	c := newChunker(t, 1000)
	chunks := c.Split("Tenant shall pay rent monthly.\n\nLandlord maintains the premises.")

	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].Index)
	assert.Equal(t, 1, chunks[0].Total)
	assert.Equal(t, "Tenant shall pay rent monthly. Landlord maintains the premises.", chunks[0].Text)
	assert.Equal(t, EstimateTokens(chunks[0].Text), chunks[0].Tokens)
}

func TestSplit_ParagraphBoundaryWithOverlap(t *testing.T) {
	// Each paragraph is 100 chars = 25 tokens; budget 40 forces a break after
	// the first paragraph, carrying it into the next chunk as overlap.
	p1 := strings.Repeat("a", 100)
	p2 := strings.Repeat("b", 100)
	c := newChunker(t, 40)

	chunks := c.Split(p1 + "\n\n" + p2)

	require.Len(t, chunks, 2)
	assert.Equal(t, p1, chunks[0].Text)
	assert.Equal(t, p1+" "+p2, chunks[1].Text, "previous paragraph carried as overlap")
	assert.Equal(t, 1, chunks[0].Index)
	assert.Equal(t, 2, chunks[1].Index)
	assert.Equal(t, 2, chunks[0].Total)
	assert.Equal(t, 2, chunks[1].Total)
}

func TestSplit_OversizedParagraphFallsBackToSentences(t *testing.T) {
	// One paragraph of ten 100-char sentences = 250 tokens; budget 60.
	var sentences []string
	for i := 0; i < 10; i++ {
		sentences = append(sentences, strings.Repeat("x", 99)+".")
	}
	para := strings.Join(sentences, " ")
	c := newChunker(t, 60)

	chunks := c.Split(para)

	require.Greater(t, len(chunks), 1)
	for _, ch := range chunks {
		assert.Equal(t, len(chunks), ch.Total)
		assert.NotEmpty(t, ch.Text)
	}
	// Sentence overlap: each chunk after the first starts with material from
	// the previous chunk.
	for i := 1; i < len(chunks); i++ {
		first := strings.SplitN(chunks[i].Text, " ", 2)[0]
		assert.Contains(t, chunks[i-1].Text, first)
	}
}

func TestSplit_IndicesAreOneBasedAndSequential(t *testing.T) {
	var paras []string
	for i := 0; i < 8; i++ {
		paras = append(paras, strings.Repeat("p", 120))
	}
	c := newChunker(t, 40)

	chunks := c.Split(strings.Join(paras, "\n\n"))

	require.NotEmpty(t, chunks)
	for i, ch := range chunks {
		assert.Equal(t, i+1, ch.Index)
		assert.Equal(t, len(chunks), ch.Total)
	}
}

func TestSplitSentences(t *testing.T) {
	got := SplitSentences("First clause. Second clause! Third clause? Fourth")
	assert.Equal(t, []string{"First clause.", "Second clause!", "Third clause?", "Fourth"}, got)
}

func TestSplitSentences_NoBreakWithoutWhitespace(t *testing.T) {
	// "93A.11" style citations must not split mid-token.
	got := SplitSentences("See c.93A.11 for remedies. Done.")
	assert.Equal(t, []string{"See c.93A.11 for remedies.", "Done."}, got)
}

func TestSplitText_UnderBudgetIsIdentity(t *testing.T) {
	text := "Short section text."
	assert.Equal(t, []string{text}, SplitText(text, 100))
}

func TestSplitText_SentenceBoundaries(t *testing.T) {
	var sentences []string
	for i := 0; i < 6; i++ {
		sentences = append(sentences, strings.Repeat("s", 79)+".")
	}
	chunks := SplitText(strings.Join(sentences, " "), 50)

	require.Greater(t, len(chunks), 1)
	for _, ch := range chunks {
		assert.LessOrEqual(t, EstimateTokens(ch), 50+20, "chunks stay near budget")
		assert.True(t, strings.HasSuffix(ch, "."), "sentence boundaries preserved")
	}
}

func TestSplitText_WordFallbackForGiantSentence(t *testing.T) {
	giant := strings.TrimSpace(strings.Repeat("word ", 500)) // no terminal punctuation
	chunks := SplitText(giant, 25)

	require.Greater(t, len(chunks), 1)
	total := 0
	for _, ch := range chunks {
		total += len(strings.Fields(ch))
	}
	assert.Equal(t, 500, total, "no words lost")
}
