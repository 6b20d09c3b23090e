package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/leaselens/leaselens/internal/config"
	"github.com/leaselens/leaselens/internal/domain/analysis"
	"github.com/leaselens/leaselens/internal/domain/statute"
	"github.com/leaselens/leaselens/internal/infrastructure/genai"
	"github.com/leaselens/leaselens/internal/infrastructure/logging"
	"github.com/leaselens/leaselens/internal/infrastructure/milvus"
	"github.com/leaselens/leaselens/internal/infrastructure/pdfio"
	"github.com/leaselens/leaselens/internal/intelligence/analyzer"
	"github.com/leaselens/leaselens/internal/intelligence/chunker"
	"github.com/leaselens/leaselens/internal/intelligence/locator"
	"github.com/leaselens/leaselens/internal/intelligence/redactor"
	"github.com/leaselens/leaselens/pkg/errors"
)

// newAnalyzeCommand runs the full analysis pipeline against a local PDF
// without touching the server-side stores: redact, chunk, retrieve statutes,
// analyze, consolidate, print.
func newAnalyzeCommand(opts *RootOptions) *cobra.Command {
	var (
		corpusPath string
		topK       int
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "analyze <lease.pdf>",
		Short: "Analyze a lease PDF locally",
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

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			if corpusPath != "" {
				cfg.Search.CorpusPath = corpusPath
			}
			if topK > 0 {
				cfg.Search.TopK = topK
			}
			return runAnalyze(ctx, cfg, log, args[0], opts.Output, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&corpusPath, "corpus", "", "statute corpus JSON path (overrides config)")
	cmd.Flags().IntVar(&topK, "top-k", 0, "statute sections retrieved per chunk (overrides config)")
	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Minute, "overall analysis timeout")

	return cmd
}

func runAnalyze(ctx context.Context, cfg *config.Config, log logging.Logger, path, format string, out io.Writer) error {
	if err := pdfio.Validate(path); err != nil {
		return err
	}
	doc, err := pdfio.Open(path, log)
	if err != nil {
		return err
	}
	defer doc.Close()

	text, err := doc.Text()
	if err != nil {
		return err
	}
	if text == "" {
		return errors.New(errors.ErrCodePDFNoText, "the PDF contains no extractable text")
	}

	redacted := redactor.New(redactor.NewLexiconRecognizer(), log).Redact(text)
	fmt.Fprintf(os.Stderr, "Redacted %d PII entities\n", totalRedactions(redacted.Summary))

	ch, err := chunker.New(cfg.Chunker.MaxTokens, log)
	if err != nil {
		return err
	}
	chunks := ch.Split(redacted.Text)
	fmt.Fprintf(os.Stderr, "Split into %d chunks\n", len(chunks))

	client := genai.NewClient(cfg.GenAI, log)
	searcher, closeSearcher, err := openSearcher(ctx, cfg, client, log)
	if err != nil {
		return err
	}
	defer closeSearcher()

	an := analyzer.New(client, log)
	analyses := make([]analysis.ChunkAnalysis, 0, len(chunks))
	for _, chunk := range chunks {
		laws, err := searcher.Search(ctx, chunk.Text, cfg.Search.TopK)
		if err != nil {
			log.Warn("statute retrieval failed, analyzing without context",
				logging.Int("chunk", chunk.Index), logging.Err(err))
		}
		result, err := an.AnalyzeChunk(ctx, chunk, laws)
		if err != nil {
			return errors.Wrapf(err, errors.ErrCodeModelCallFailed, "analyze chunk %d/%d", chunk.Index, chunk.Total)
		}
		analyses = append(analyses, result)
		fmt.Fprintf(os.Stderr, "Analyzed chunk %d/%d\n", chunk.Index, chunk.Total)
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	loc := locator.New(doc, log)
	report, enhanced := analysis.NewConsolidator(loc, log).ConsolidateEnhanced(analyses, redacted.Text, analysis.EnhancedInput{
		DocumentID:    filepath.Base(path),
		FileName:      filepath.Base(path),
		UploadDate:    time.Now().UTC(),
		FileSizeBytes: info.Size(),
		PageCount:     doc.PageCount(),
		Redaction:     redacted.Summary,
	})

	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(enhanced)
	}
	printReport(out, report)
	return nil
}

// openSearcher builds the configured retrieval backend.  With the memory
// backend the corpus file is loaded into process; with milvus the query goes
// to the standing collection.
func openSearcher(ctx context.Context, cfg *config.Config, embedder statute.Embedder, log logging.Logger) (statute.Searcher, func(), error) {
	if cfg.Search.Backend == "milvus" {
		s, err := milvus.Connect(ctx, cfg.Milvus.Addr, cfg.Milvus.Collection, embedder, log)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	}

	index := statute.NewMemoryIndex(embedder, log)
	if err := index.LoadFile(cfg.Search.CorpusPath); err != nil {
		return nil, nil, err
	}
	return index, func() {}, nil
}

func printReport(out io.Writer, report analysis.Report) {
	fmt.Fprintf(out, "Power imbalance score: %d/100 (%s)\n", report.PowerImbalanceScore, report.SeverityLevel)
	fmt.Fprintf(out, "Summary: %s\n\n", report.Summary)

	if len(report.IllegalClauses) > 0 {
		fmt.Fprintf(out, "Illegal clauses (%d):\n", len(report.IllegalClauses))
		for _, ill := range report.IllegalClauses {
			fmt.Fprintf(out, "  - %s\n    Violation: %s\n", ill.Clause, ill.Violation)
		}
		fmt.Fprintln(out)
	}
	if len(report.RiskyTerms) > 0 {
		fmt.Fprintf(out, "Risky terms (%d):\n", len(report.RiskyTerms))
		for _, r := range report.RiskyTerms {
			fmt.Fprintf(out, "  - %s: %s\n", r.Term, r.Risk)
		}
		fmt.Fprintln(out)
	}
	if len(report.FavorableClauses) > 0 {
		fmt.Fprintf(out, "Tenant-favorable clauses (%d):\n", len(report.FavorableClauses))
		for _, f := range report.FavorableClauses {
			fmt.Fprintf(out, "  - %s\n", f.Clause)
		}
		fmt.Fprintln(out)
	}
	if report.PotentialRecoveryAmount > 0 {
		fmt.Fprintf(out, "Potential recovery: $%d\n", report.PotentialRecoveryAmount)
	}
}

func totalRedactions(summary map[string]int) int {
	n := 0
	for _, c := range summary {
		n += c
	}
	return n
}
