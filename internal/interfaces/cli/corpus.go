package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/leaselens/leaselens/internal/domain/statute"
	"github.com/leaselens/leaselens/internal/infrastructure/genai"
	"github.com/leaselens/leaselens/internal/infrastructure/milvus"
	"github.com/leaselens/leaselens/internal/intelligence/chunker"
	"github.com/leaselens/leaselens/pkg/errors"
)

func newCorpusCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "corpus",
		Short: "Prepare and load the statute corpus",
	}
	cmd.AddCommand(newCorpusBuildCommand(opts), newCorpusLoadCommand(opts))
	return cmd
}

// newCorpusBuildCommand chunks oversized statute sections and optionally
// embeds every entry, producing the corpus file the memory backend loads.
func newCorpusBuildCommand(opts *RootOptions) *cobra.Command {
	var (
		maxTokens int
		embed     bool
	)

	cmd := &cobra.Command{
		Use:   "build <input.json> <output.json>",
		Short: "Chunk statute sections and compute embeddings",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newCLILogger(opts)
			if err != nil {
				return err
			}

			sections, err := readSections(args[0])
			if err != nil {
				return err
			}

			chunked := chunkSections(sections, maxTokens)
			fmt.Fprintf(os.Stderr, "%d sections -> %d corpus entries\n", len(sections), len(chunked))

			if embed {
				cfg, err := loadConfig(opts)
				if err != nil {
					return err
				}
				client := genai.NewClient(cfg.GenAI, log)
				if err := embedSections(cmd.Context(), client, chunked); err != nil {
					return err
				}
			}

			return writeSections(args[1], chunked)
		},
	}

	cmd.Flags().IntVar(&maxTokens, "max-tokens", 6000, "maximum estimated tokens per corpus entry")
	cmd.Flags().BoolVar(&embed, "embed", true, "compute embeddings via the configured model endpoint")

	return cmd
}

// newCorpusLoadCommand inserts a built corpus into the Milvus collection.
func newCorpusLoadCommand(opts *RootOptions) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "load <corpus.json>",
		Short: "Load a built corpus into Milvus",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			log, err := newCLILogger(opts)
			if err != nil {
				return err
			}

			sections, err := readSections(args[0])
			if err != nil {
				return err
			}
			if len(sections) == 0 {
				return errors.New(errors.ErrCodeCorpusEmpty, "corpus file holds no sections")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			client := genai.NewClient(cfg.GenAI, log)
			searcher, err := milvus.Connect(ctx, cfg.Milvus.Addr, cfg.Milvus.Collection, client, log)
			if err != nil {
				return err
			}
			defer searcher.Close()

			if err := searcher.EnsureCollection(ctx, cfg.Milvus.EmbeddingDim); err != nil {
				return err
			}
			inserted, err := searcher.InsertSections(ctx, sections)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Inserted %d of %d sections into %s\n",
				inserted, len(sections), cfg.Milvus.Collection)
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "load timeout")

	return cmd
}

func readSections(path string) ([]statute.Section, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeValidation, "read corpus file")
	}
	var sections []statute.Section
	if err := json.Unmarshal(data, &sections); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "parse corpus file")
	}
	return sections, nil
}

func writeSections(path string, sections []statute.Section) error {
	data, err := json.MarshalIndent(sections, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encode corpus")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "write corpus file")
	}
	return nil
}

// chunkSections splits sections whose text exceeds maxTokens into multiple
// entries carrying chunk_index/total_chunks, leaving short sections intact.
func chunkSections(sections []statute.Section, maxTokens int) []statute.Section {
	var out []statute.Section
	for _, s := range sections {
		if chunker.EstimateTokens(s.Text) <= maxTokens {
			s.ChunkIndex = 1
			s.TotalChunks = 1
			out = append(out, s)
			continue
		}
		pieces := chunker.SplitText(s.Text, maxTokens)
		for i, piece := range pieces {
			entry := s
			entry.Text = piece
			entry.ChunkIndex = i + 1
			entry.TotalChunks = len(pieces)
			if entry.ID != "" {
				entry.ID = fmt.Sprintf("%s-%d", s.ID, i+1)
			}
			out = append(out, entry)
		}
	}
	return out
}

func embedSections(ctx context.Context, embedder statute.Embedder, sections []statute.Section) error {
	for i := range sections {
		vec, err := embedder.Embed(ctx, sections[i].Text)
		if err != nil {
			return errors.Wrapf(err, errors.ErrCodeEmbeddingFailed, "embed section %s", sections[i].Citation())
		}
		sections[i].Embedding = vec
		if (i+1)%25 == 0 {
			fmt.Fprintf(os.Stderr, "Embedded %d/%d entries\n", i+1, len(sections))
		}
	}
	return nil
}
