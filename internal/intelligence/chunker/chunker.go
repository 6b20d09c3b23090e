// Package chunker splits document text into token-budgeted chunks for
// language-model analysis.  Chunks overlap slightly so that clauses spanning a
// boundary remain analysable in at least one chunk.
package chunker

import (
	"strings"

	"github.com/leaselens/leaselens/internal/infrastructure/logging"
	"github.com/leaselens/leaselens/pkg/errors"
)

// Chunk is one token-budgeted slice of a document.
type Chunk struct {
	Text   string `json:"text"`
	Tokens int    `json:"tokens"`
	Index  int    `json:"chunk_index"`  // 1-based
	Total  int    `json:"total_chunks"` // retrofitted after splitting
}

// EstimateTokens approximates the token count of text at four characters per
// token.  The estimate is byte-based and intentionally cheap; it only needs to
// be consistent, not exact.
func EstimateTokens(text string) int {
	return len(text) / 4
}

// Chunker splits documents under a fixed token budget.
type Chunker struct {
	maxTokens int
	log       logging.Logger
}

// New constructs a Chunker.  maxTokens must be positive.
func New(maxTokens int, log logging.Logger) (*Chunker, error) {
	if maxTokens < 1 {
		return nil, errors.New(errors.ErrCodeChunkBudgetInvalid, "chunk token budget must be positive").
			WithDetailf("max_tokens=%d", maxTokens)
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Chunker{maxTokens: maxTokens, log: log.Named("chunker")}, nil
}

// Split divides text into chunks of at most the configured token budget.
//
// The splitting hierarchy is paragraph, then sentence for oversized
// paragraphs.  When a chunk closes at a paragraph boundary the last paragraph
// is carried into the next chunk; when it closes at a sentence boundary the
// last two accumulated pieces are carried.  Chunk indices are 1-based and
// every chunk's Total is set to the final count.
//
// Empty or whitespace-only input yields no chunks.
func (c *Chunker) Split(text string) []Chunk {
	paragraphs := splitParagraphs(text)

	var chunks []Chunk
	var current []string
	currentTokens := 0

	flush := func() {
		joined := strings.Join(current, " ")
		chunks = append(chunks, Chunk{
			Text:   joined,
			Tokens: EstimateTokens(joined),
			Index:  len(chunks) + 1,
		})
	}

	for _, para := range paragraphs {
		paraTokens := EstimateTokens(para)

		switch {
		case paraTokens > c.maxTokens:
			// Oversized paragraph: fall back to sentence granularity.
			for _, sentence := range SplitSentences(para) {
				sentenceTokens := EstimateTokens(sentence)
				if currentTokens+sentenceTokens > c.maxTokens {
					if len(current) > 0 {
						flush()
						// Carry the last two pieces as overlap.
						overlap := ""
						if len(current) >= 2 {
							overlap = strings.Join(current[len(current)-2:], " ")
						}
						if overlap != "" {
							current = []string{overlap, sentence}
						} else {
							current = []string{sentence}
						}
						currentTokens = EstimateTokens(strings.Join(current, " "))
					} else {
						current = []string{sentence}
						currentTokens = sentenceTokens
					}
				} else {
					current = append(current, sentence)
					currentTokens += sentenceTokens
				}
			}

		case currentTokens+paraTokens > c.maxTokens:
			if len(current) > 0 {
				flush()
				// Carry the last paragraph as overlap.
				overlap := current[len(current)-1]
				current = []string{overlap, para}
				currentTokens = EstimateTokens(strings.Join(current, " "))
			} else {
				current = []string{para}
				currentTokens = paraTokens
			}

		default:
			current = append(current, para)
			currentTokens += paraTokens
		}
	}

	if len(current) > 0 {
		flush()
	}

	total := len(chunks)
	for i := range chunks {
		chunks[i].Total = total
	}

	c.log.Debug("document split", logging.Int("chunks", total))
	return chunks
}

// SplitText divides text into plain string chunks of at most maxTokens,
// preserving sentence boundaries where possible and falling back to word
// boundaries for oversized sentences.  Unlike Chunker.Split it adds no
// overlap; it is used when preparing statute corpus sections for embedding.
func SplitText(text string, maxTokens int) []string {
	if EstimateTokens(text) <= maxTokens {
		return []string{text}
	}

	var chunks []string
	var current []string
	currentTokens := 0

	for _, sentence := range SplitSentences(text) {
		sentenceTokens := EstimateTokens(sentence)

		switch {
		case sentenceTokens > maxTokens:
			if len(current) > 0 {
				chunks = append(chunks, strings.Join(current, " "))
				current = nil
				currentTokens = 0
			}
			// Oversized sentence: split on words.
			var wordChunk []string
			wordTokens := 0
			for _, word := range strings.Fields(sentence) {
				wt := EstimateTokens(word + " ")
				if wordTokens+wt > maxTokens {
					chunks = append(chunks, strings.Join(wordChunk, " "))
					wordChunk = []string{word}
					wordTokens = wt
				} else {
					wordChunk = append(wordChunk, word)
					wordTokens += wt
				}
			}
			if len(wordChunk) > 0 {
				chunks = append(chunks, strings.Join(wordChunk, " "))
			}

		case currentTokens+sentenceTokens > maxTokens:
			if len(current) > 0 {
				chunks = append(chunks, strings.Join(current, " "))
			}
			current = []string{sentence}
			currentTokens = sentenceTokens

		default:
			current = append(current, sentence)
			currentTokens += sentenceTokens
		}
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks
}

// splitParagraphs splits on blank lines, trimming each paragraph and dropping
// empty ones.
func splitParagraphs(text string) []string {
	parts := strings.Split(text, "\n\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SplitSentences splits text after terminal punctuation (. ! ?) followed by
// whitespace.  The punctuation stays with its sentence; the separating
// whitespace is dropped.
func SplitSentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			j := i + 1
			k := j
			for k < len(text) && isSpace(text[k]) {
				k++
			}
			if k > j {
				s := strings.TrimSpace(text[start:j])
				if s != "" {
					out = append(out, s)
				}
				start = k
				i = k - 1
			}
		}
	}
	if start < len(text) {
		s := strings.TrimSpace(text[start:])
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
