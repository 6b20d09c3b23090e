package statute

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/leaselens/leaselens/internal/infrastructure/logging"
	"github.com/leaselens/leaselens/pkg/errors"
)

// MemoryIndex is the default Searcher: the whole corpus in memory, scored by
// brute-force cosine similarity.  The corpus is small (a few hundred chunked
// sections) so a scan per query is cheaper than maintaining an ANN index.
//
// Ordering is deterministic: equal similarities keep corpus load order.
type MemoryIndex struct {
	embedder Embedder
	log      logging.Logger

	mu       sync.RWMutex
	sections []Section
}

// NewMemoryIndex builds an empty index; call LoadFile before searching.
func NewMemoryIndex(embedder Embedder, log logging.Logger) *MemoryIndex {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &MemoryIndex{embedder: embedder, log: log.Named("statute.memory")}
}

// LoadFile replaces the index contents with the corpus JSON at path.
// Entries without a stored embedding are dropped; they can never score.
func (m *MemoryIndex) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, errors.ErrCodeCorpusLoadFailed, "read corpus %s", path)
	}

	var all []Section
	if err := json.Unmarshal(data, &all); err != nil {
		return errors.Wrapf(err, errors.ErrCodeCorpusLoadFailed, "parse corpus %s", path)
	}

	sections := make([]Section, 0, len(all))
	var skipped int
	for _, s := range all {
		if len(s.Embedding) == 0 {
			skipped++
			continue
		}
		sections = append(sections, s)
	}
	if len(sections) == 0 {
		return errors.Newf(errors.ErrCodeCorpusEmpty, "corpus %s has no embedded sections", path)
	}

	m.mu.Lock()
	m.sections = sections
	m.mu.Unlock()

	m.log.Info("corpus loaded",
		logging.String("path", path),
		logging.Int("sections", len(sections)),
		logging.Int("skipped", skipped))
	return nil
}

// Len returns the number of searchable sections.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sections)
}

// Search embeds the query and returns the topK most similar sections.
func (m *MemoryIndex) Search(ctx context.Context, query string, topK int) ([]Section, error) {
	if topK <= 0 {
		return nil, nil
	}

	vec, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeEmbeddingFailed, "embed query")
	}

	m.mu.RLock()
	sections := m.sections
	m.mu.RUnlock()
	if len(sections) == 0 {
		return nil, errors.New(errors.ErrCodeCorpusEmpty, "statute index is empty")
	}

	scored := make([]Section, len(sections))
	for i, s := range sections {
		sim, err := cosine(vec, s.Embedding)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrCodeDimensionMismatch, "section %s", s.ID)
		}
		s.Similarity = sim
		s.Embedding = nil // callers never need the vector back
		scored[i] = s
	}

	// Stable keeps corpus load order between equal scores.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})

	if topK > len(scored) {
		topK = len(scored)
	}
	return scored[:topK], nil
}

// Watch reloads the corpus whenever the file changes, until ctx is done.
// Reload failures keep the previous index and log the error.
func (m *MemoryIndex) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCorpusLoadFailed, "create corpus watcher")
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return errors.Wrapf(err, errors.ErrCodeCorpusLoadFailed, "watch corpus %s", path)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := m.LoadFile(path); err != nil {
					m.log.Error("corpus reload failed",
						logging.String("path", path), logging.Err(err))
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				m.log.Warn("corpus watcher error", logging.Err(err))
			}
		}
	}()
	return nil
}

// cosine computes cosine similarity in float64 for stability.
func cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, errors.Newf(errors.ErrCodeDimensionMismatch,
			"query dimension %d does not match corpus dimension %d", len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}
