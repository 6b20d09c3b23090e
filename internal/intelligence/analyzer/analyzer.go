// Package analyzer turns one lease chunk plus its retrieved statutes into
// structured findings via an LLM completion, recovering from malformed model
// output instead of failing the document.
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/leaselens/leaselens/internal/domain/analysis"
	"github.com/leaselens/leaselens/internal/domain/statute"
	"github.com/leaselens/leaselens/internal/infrastructure/logging"
	"github.com/leaselens/leaselens/internal/intelligence/chunker"
	"github.com/leaselens/leaselens/pkg/errors"
)

// CompletionClient is the generative-model dependency.  Implementations must
// be safe for concurrent use.
type CompletionClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Analyzer runs per-chunk clause analysis.
type Analyzer struct {
	client CompletionClient
	log    logging.Logger
}

// New builds an Analyzer.
func New(client CompletionClient, log logging.Logger) *Analyzer {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Analyzer{client: client, log: log.Named("analyzer")}
}

const analysisPromptFormat = `You are a legal expert specializing in Massachusetts tenant rights and housing law.

Analyze the following lease agreement clause against Massachusetts General Laws (Chapter 186 - Estates for Years and at Will, and Chapter 93A - Consumer Protection).

LEASE AGREEMENT CLAUSE (Chunk %d/%d):
%s

RELEVANT MASSACHUSETTS LAWS:
%s

Provide a detailed analysis in JSON format with the following structure:
{
    "illegal_clauses": [
        {
            "clause": "exact text from lease",
            "violation": "which law/statute it violates",
            "explanation": "why this is illegal",
            "severity": "high/critical",
            "potential_recovery": "estimated dollar amount tenant could recover (e.g., $5000)",
            "recovery_calculation": "detailed explanation of how this amount is calculated under MA law, citing specific statutory remedies"
        }
    ],
    "risky_terms": [
        {
            "term": "exact text from lease",
            "risk": "potential legal issue",
            "explanation": "why this could be problematic",
            "severity": "medium/high"
        }
    ],
    "favorable_clauses": [
        {
            "clause": "exact text from lease",
            "benefit": "how this protects the tenant",
            "relevant_law": "supporting statute if any"
        }
    ],
    "concerns": [
        {
            "issue": "description of concern",
            "recommendation": "what should be done"
        }
    ]
}

Be thorough and cite specific statutes. If a clause is found in the lease that violates MA law, mark it as illegal.

Common violations and their penalties under Massachusetts law:
- Security deposit violations (Chapter 186, §15B): Up to 3x the deposit amount plus attorney's fees and costs
- Chapter 93A consumer protection violations: Double or triple damages (actual damages × 2 or × 3)
- Illegal exculpatory clauses (Chapter 186, §15): Actual damages plus statutory penalties
- Attorney fee violations (Chapter 186, §20): Attorney's fees if tenant prevails
- Waiver of tenant rights: Actual damages and potential punitive damages
- Improper security deposit handling: $1,000-$5,000 typical range
- Prohibited lease terms (Chapter 186, §15B): Actual damages plus statutory remedies

For each illegal clause, estimate the potential recovery based on:
1. The specific statute violated and its remedies
2. Typical damages awarded in MA courts for similar violations
3. Whether multiple damages (2x, 3x) apply under Chapter 93A
4. Attorney's fees and costs if applicable

Return ONLY valid JSON, no additional text.`

// AnalyzeChunk analyzes one chunk against the retrieved statute sections.
// A model transport failure is returned as an error; unparsable model output
// degrades to an empty finding set tagged ParseFailed, with a single
// manual-review concern, so one bad chunk never aborts the document.
func (a *Analyzer) AnalyzeChunk(ctx context.Context, chunk chunker.Chunk, laws []statute.Section) (analysis.ChunkAnalysis, error) {
	prompt := buildAnalysisPrompt(chunk, laws)

	raw, err := a.client.Complete(ctx, prompt)
	if err != nil {
		return analysis.ChunkAnalysis{}, errors.Wrapf(err, errors.ErrCodeModelCallFailed,
			"analyze chunk %d/%d", chunk.Index, chunk.Total)
	}

	text := StripFences(strings.TrimSpace(raw))

	var result analysis.ChunkAnalysis
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		a.log.Warn("model returned unparsable analysis",
			logging.Int("chunk", chunk.Index),
			logging.Err(err))
		return parseFailedResult(), nil
	}
	return result, nil
}

func buildAnalysisPrompt(chunk chunker.Chunk, laws []statute.Section) string {
	return fmt.Sprintf(analysisPromptFormat, chunk.Index, chunk.Total, chunk.Text, LawContext(laws))
}

// LawContext renders retrieved sections as the prompt's legal context block.
func LawContext(laws []statute.Section) string {
	blocks := make([]string, len(laws))
	for i, law := range laws {
		blocks[i] = fmt.Sprintf("[%s]\n%s", law.Citation(), law.Text)
	}
	return strings.Join(blocks, "\n\n---\n\n")
}

func parseFailedResult() analysis.ChunkAnalysis {
	return analysis.ChunkAnalysis{
		IllegalClauses:   []analysis.IllegalClause{},
		RiskyTerms:       []analysis.RiskyTerm{},
		FavorableClauses: []analysis.FavorableClause{},
		Concerns: []analysis.Concern{{
			Issue:          "Analysis parsing error",
			Recommendation: "Manual review recommended",
		}},
		ParseFailed: true,
	}
}

// StripFences removes a markdown code fence around a JSON payload.  Both the
// ` ```json ` and bare ` ``` ` forms are handled; text without fences passes
// through unchanged.
func StripFences(text string) string {
	if i := strings.Index(text, "```json"); i >= 0 {
		rest := text[i+len("```json"):]
		if j := strings.Index(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		return strings.TrimSpace(rest)
	}
	if strings.Contains(text, "```") {
		parts := strings.Split(text, "```")
		if len(parts) > 1 {
			return strings.TrimSpace(parts[1])
		}
	}
	return text
}
