// Package statute holds the legal reference corpus: Massachusetts General
// Laws sections with precomputed embeddings, and the search contract the
// analysis pipeline retrieves them through.
package statute

import "fmt"

// Section is one corpus entry.  Long statute sections are stored pre-chunked;
// ChunkIndex and TotalChunks identify the piece.  Embedding is precomputed at
// corpus build time.  Similarity is populated by Search and is zero on
// entries read straight from the corpus.
type Section struct {
	ID           string    `json:"id"`
	Chapter      string    `json:"chapter"`
	Section      string    `json:"section"`
	SectionTitle string    `json:"section_title"`
	Text         string    `json:"text"`
	ChunkIndex   int       `json:"chunk_index"`
	TotalChunks  int       `json:"total_chunks"`
	Embedding    []float32 `json:"text_embedding,omitempty"`
	Similarity   float64   `json:"similarity"`
}

// Citation renders the human-readable reference used in prompts and chat
// sources, e.g. "Chapter 186, Section 15B".
func (s Section) Citation() string {
	return fmt.Sprintf("Chapter %s, %s", s.Chapter, s.Section)
}
