// Package chat answers housing-law questions grounded in retrieved statute
// sections, optionally in the context of an analyzed lease.
package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/leaselens/leaselens/internal/domain/analysis"
	"github.com/leaselens/leaselens/internal/domain/document"
	"github.com/leaselens/leaselens/internal/domain/statute"
	"github.com/leaselens/leaselens/internal/infrastructure/logging"
	"github.com/leaselens/leaselens/internal/intelligence/analyzer"
	"github.com/leaselens/leaselens/pkg/errors"
)

// defaultTopK statute sections retrieved per question.
const defaultTopK = 5

// Source cites one statute section used in an answer.
type Source struct {
	Chapter   string `json:"chapter"`
	Section   string `json:"section"`
	Relevance string `json:"relevance"`
}

// Answer is a grounded chat reply.
type Answer struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
	Context string   `json:"context,omitempty"`
}

// Service runs retrieval-grounded chat.
type Service struct {
	docs     document.Repository
	reports  analysis.Store
	searcher statute.Searcher
	llm      analyzer.CompletionClient
	log      logging.Logger
	topK     int
}

// NewService wires the chat service.  topK of zero takes the default.
func NewService(docs document.Repository, reports analysis.Store, searcher statute.Searcher, llm analyzer.CompletionClient, log logging.Logger, topK int) *Service {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if topK <= 0 {
		topK = defaultTopK
	}
	return &Service{
		docs:     docs,
		reports:  reports,
		searcher: searcher,
		llm:      llm,
		log:      log.Named("chat"),
		topK:     topK,
	}
}

// Ask answers a question grounded in retrieved statutes.  When documentID
// names a completed analysis, the answer is additionally framed by that
// lease's findings; an unknown or unfinished document degrades to a plain
// statute-grounded answer.
func (s *Service) Ask(ctx context.Context, question, documentID string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errors.New(errors.ErrCodeValidation, "question must not be empty")
	}

	docContext := s.documentContext(ctx, documentID)

	searchQuery := question
	if docContext != "" {
		searchQuery = docContext + ": " + question
	}
	laws, err := s.searcher.Search(ctx, searchQuery, s.topK)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSearchFailed, "retrieve statutes for chat")
	}

	reply, err := s.llm.Complete(ctx, chatPrompt(question, laws, docContext))
	if err != nil {
		return nil, err
	}

	sources := make([]Source, 0, len(laws))
	for _, law := range laws {
		sources = append(sources, Source{
			Chapter:   law.Chapter,
			Section:   law.Section,
			Relevance: fmt.Sprintf("%.2f", law.Similarity),
		})
	}
	return &Answer{Answer: reply, Sources: sources, Context: docContext}, nil
}

// documentContext renders the one-line framing for a completed document.
// Any lookup failure degrades to no context.
func (s *Service) documentContext(ctx context.Context, documentID string) string {
	if documentID == "" {
		return ""
	}
	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		s.log.Warn("chat document lookup failed",
			logging.String("document_id", documentID),
			logging.Err(err))
		return ""
	}
	if doc.Status != document.StatusCompleted {
		return ""
	}

	context := fmt.Sprintf("In the context of the analyzed lease '%s'", doc.Filename)
	report, _, err := s.reports.Get(ctx, doc.ID)
	if err != nil || report == nil {
		return context
	}
	return fmt.Sprintf("%s (power imbalance score %d/100, severity %s: %s)",
		context, report.PowerImbalanceScore, report.SeverityLevel, report.Summary)
}

func chatPrompt(question string, laws []statute.Section, docContext string) string {
	var b strings.Builder
	b.WriteString("You are a legal assistant specializing in Massachusetts housing law.\n")
	b.WriteString("Answer the following question based on the provided legal statutes.\n\n")
	if docContext != "" {
		b.WriteString(docContext)
		b.WriteString("\n\n")
	}
	b.WriteString("Legal Statutes:\n")
	b.WriteString(analyzer.LawContext(laws))
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\n\nProvide a clear, accurate answer with citations to specific statutes.")
	return b.String()
}
