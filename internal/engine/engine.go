// Package engine evaluates queries against the index with
// query-likelihood scoring under a configured smoothing rule, and
// optionally wraps retrieval with pseudo-relevance feedback.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/ir-baselines/qlrun/internal/index"
	"github.com/ir-baselines/qlrun/internal/topics"
)

// ScoredDoc is one ranked retrieval result in engine-internal ID space.
type ScoredDoc struct {
	InternalID uint32
	Score      float64
}

// Engine is the query-evaluation contract the batch loop depends on.
// n <= 0 requests an unbounded result list.
type Engine interface {
	Query(ctx context.Context, text string, n int) ([]ScoredDoc, error)
}

type ruleMethod int

const (
	methodLinear ruleMethod = iota
	methodDirichlet
)

// QueryLikelihood scores documents by the log-likelihood of the query
// under a smoothed document language model. The background model is the
// collection term distribution.
type QueryLikelihood struct {
	store  *index.Store
	dict   *index.Dictionary
	method ruleMethod

	// collectionLambda/documentLambda for linear, mu for dirichlet.
	collectionLambda float64
	documentLambda   float64
	mu               float64

	collectionLength uint64
	logger           *slog.Logger
}

// New builds an engine from the store, dictionary, and a sequence of
// smoothing-directive strings. Directives apply in order; later rules
// override earlier fields.
func New(store *index.Store, dict *index.Dictionary, rules []string) (*QueryLikelihood, error) {
	e := &QueryLikelihood{
		store:  store,
		dict:   dict,
		logger: slog.Default().With("component", "query-engine"),
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("building engine: no smoothing rules given")
	}
	for _, rule := range rules {
		if err := e.applyRule(rule); err != nil {
			return nil, fmt.Errorf("building engine: %w", err)
		}
	}
	cl, err := store.CollectionLength()
	if err != nil {
		return nil, fmt.Errorf("building engine: %w", err)
	}
	if cl == 0 {
		return nil, fmt.Errorf("building engine: collection is empty")
	}
	e.collectionLength = cl
	e.logger.Debug("engine ready",
		"rules", len(rules),
		"collection_length", cl,
	)
	return e, nil
}

// applyRule parses one directive of the form
// "method:linear,collectionLambda:0.50,documentLambda:0.50" or
// "method:dirichlet,mu:256".
func (e *QueryLikelihood) applyRule(rule string) error {
	for _, field := range strings.Split(rule, ",") {
		key, value, found := strings.Cut(field, ":")
		if !found {
			return fmt.Errorf("malformed smoothing rule field %q", field)
		}
		switch key {
		case "method":
			switch value {
			case "linear":
				e.method = methodLinear
			case "dirichlet":
				e.method = methodDirichlet
			default:
				return fmt.Errorf("unknown smoothing rule method %q", value)
			}
		case "collectionLambda", "documentLambda", "mu":
			v, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return fmt.Errorf("smoothing rule field %q: %w", field, err)
			}
			switch key {
			case "collectionLambda":
				e.collectionLambda = v
			case "documentLambda":
				e.documentLambda = v
			case "mu":
				e.mu = v
			}
		default:
			return fmt.Errorf("unknown smoothing rule field %q", key)
		}
	}
	return nil
}

type queryTerm struct {
	tokenID      uint32
	collectionP  float64
	postings     []index.Posting
	tfByDocument map[uint32]uint32
}

// Query runs ranked retrieval for the given query text. Results are in
// descending score order with ascending internal ID as the tiebreak;
// n <= 0 returns the full candidate ranking.
func (e *QueryLikelihood) Query(ctx context.Context, text string, n int) ([]ScoredDoc, error) {
	terms, err := e.gatherTerms(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(terms) == 0 {
		return []ScoredDoc{}, nil
	}

	candidates := make(map[uint32]struct{})
	for _, qt := range terms {
		for _, p := range qt.postings {
			candidates[p.InternalID] = struct{}{}
		}
	}

	results := make([]ScoredDoc, 0, len(candidates))
	for docID := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		docLen, err := e.store.DocumentLength(docID)
		if err != nil {
			return nil, err
		}
		score := 0.0
		for _, qt := range terms {
			tf := float64(qt.tfByDocument[docID])
			score += math.Log(e.smoothed(tf, float64(docLen), qt.collectionP))
		}
		results = append(results, ScoredDoc{InternalID: docID, Score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].InternalID < results[j].InternalID
	})
	if n > 0 && len(results) > n {
		results = results[:n]
	}
	return results, nil
}

// gatherTerms resolves the query text into scored term state. Terms
// absent from the dictionary or with no postings contribute nothing.
func (e *QueryLikelihood) gatherTerms(ctx context.Context, text string) ([]queryTerm, error) {
	var terms []queryTerm
	for _, term := range topics.Analyze(text) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tokenID, ok := e.dict.TokenID(term)
		if !ok {
			continue
		}
		ctf, err := e.store.CollectionTF(tokenID)
		if err != nil {
			return nil, err
		}
		if ctf == 0 {
			continue
		}
		postings, err := e.store.Postings(tokenID)
		if err != nil {
			return nil, err
		}
		qt := queryTerm{
			tokenID:      tokenID,
			collectionP:  float64(ctf) / float64(e.collectionLength),
			postings:     postings,
			tfByDocument: make(map[uint32]uint32, len(postings)),
		}
		for _, p := range postings {
			qt.tfByDocument[p.InternalID] = p.TF
		}
		terms = append(terms, qt)
	}
	return terms, nil
}

// smoothed returns the smoothed probability of a term in a document.
func (e *QueryLikelihood) smoothed(tf, docLen, collectionP float64) float64 {
	switch e.method {
	case methodLinear:
		var docP float64
		if docLen > 0 {
			docP = tf / docLen
		}
		return e.documentLambda*docP + e.collectionLambda*collectionP
	case methodDirichlet:
		return (tf + e.mu*collectionP) / (docLen + e.mu)
	}
	return collectionP
}
