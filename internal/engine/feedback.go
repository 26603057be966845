package engine

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/ir-baselines/qlrun/internal/index"
	"github.com/ir-baselines/qlrun/internal/topics"
)

// Feedback wraps an engine with pseudo-relevance feedback: an initial
// pass retrieves Docs documents, the Terms highest-weighted terms from
// those documents are appended to the query, and the expanded query is
// re-run at the requested depth.
type Feedback struct {
	inner  *QueryLikelihood
	store  *index.Store
	dict   *index.Dictionary
	docs   int
	terms  int
	logger *slog.Logger
}

// NewFeedback builds the feedback wrapper. docs and terms must be
// positive; the CLI validates that before construction.
func NewFeedback(inner *QueryLikelihood, store *index.Store, dict *index.Dictionary, docs, terms int) *Feedback {
	return &Feedback{
		inner:  inner,
		store:  store,
		dict:   dict,
		docs:   docs,
		terms:  terms,
		logger: slog.Default().With("component", "feedback-engine"),
	}
}

func (f *Feedback) Query(ctx context.Context, text string, n int) ([]ScoredDoc, error) {
	initial, err := f.inner.Query(ctx, text, f.docs)
	if err != nil {
		return nil, err
	}
	if len(initial) == 0 {
		return f.inner.Query(ctx, text, n)
	}

	expansion, err := f.expansionTerms(ctx, text, initial)
	if err != nil {
		return nil, err
	}
	if len(expansion) == 0 {
		return f.inner.Query(ctx, text, n)
	}

	expanded := text + " " + strings.Join(expansion, " ")
	f.logger.Debug("expanded query", "original", text, "expansion", expansion)
	return f.inner.Query(ctx, expanded, n)
}

// expansionTerms selects feedback terms by a relevance-model weight:
// document-length-normalized term frequency weighted by the document's
// retrieval score, summed over the feedback documents. Terms already in
// the query are excluded.
func (f *Feedback) expansionTerms(ctx context.Context, text string, feedbackDocs []ScoredDoc) ([]string, error) {
	queryTokens := make(map[uint32]struct{})
	for _, term := range topics.Analyze(text) {
		if tokenID, ok := f.dict.TokenID(term); ok {
			queryTokens[tokenID] = struct{}{}
		}
	}

	// Scores are log-likelihoods; shift by the max before
	// exponentiating so the weights stay finite.
	maxScore := feedbackDocs[0].Score
	for _, d := range feedbackDocs {
		if d.Score > maxScore {
			maxScore = d.Score
		}
	}

	weights := make(map[uint32]float64)
	for _, doc := range feedbackDocs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		docLen, err := f.store.DocumentLength(doc.InternalID)
		if err != nil {
			return nil, err
		}
		if docLen == 0 {
			continue
		}
		docTerms, err := f.store.DocumentTerms(doc.InternalID)
		if err != nil {
			return nil, err
		}
		docWeight := math.Exp(doc.Score - maxScore)
		for _, tc := range docTerms {
			if _, inQuery := queryTokens[tc.TokenID]; inQuery {
				continue
			}
			weights[tc.TokenID] += docWeight * float64(tc.TF) / float64(docLen)
		}
	}

	type weighted struct {
		tokenID uint32
		weight  float64
	}
	ranked := make([]weighted, 0, len(weights))
	for tokenID, w := range weights {
		ranked = append(ranked, weighted{tokenID, w})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].weight != ranked[j].weight {
			return ranked[i].weight > ranked[j].weight
		}
		return ranked[i].tokenID < ranked[j].tokenID
	})
	if len(ranked) > f.terms {
		ranked = ranked[:f.terms]
	}

	terms := make([]string, 0, len(ranked))
	for _, w := range ranked {
		if term, ok := f.dict.Lookup(w.tokenID); ok {
			terms = append(terms, term)
		}
	}
	return terms, nil
}
