package statute

import "context"

// Searcher retrieves the corpus sections most similar to a query, ordered by
// descending cosine similarity.  Implementations must be safe for concurrent
// use.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]Section, error)
}

// Embedder turns text into the vector space the corpus embeddings live in.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
