// Package batch sequences a retrieval run: smoothing configuration,
// the per-topic-file retrieval loop, and run-file serialization.
package batch

import (
	"context"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ir-baselines/qlrun/internal/engine"
	"github.com/ir-baselines/qlrun/internal/index"
	"github.com/ir-baselines/qlrun/internal/run"
	"github.com/ir-baselines/qlrun/internal/topics"
	apperrors "github.com/ir-baselines/qlrun/pkg/errors"
	"github.com/ir-baselines/qlrun/pkg/metrics"
)

// Record is the ranked result list of one topic, in external-ID space,
// preserving engine order.
type Record struct {
	TopicID string
	Results []run.ScoredResult
}

// Loop runs ranked retrieval for every topic a parser yields. It is
// stateless across topics; any engine or ID-mapping failure aborts the
// whole batch rather than emitting a truncated run.
type Loop struct {
	engine  engine.Engine
	idx     index.Index
	dict    *index.Dictionary
	topK    int
	workers int
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewLoop builds a retrieval loop. topK <= 0 requests unbounded result
// lists; workers < 1 is treated as 1 (the baseline sequential mode).
func NewLoop(eng engine.Engine, idx index.Index, dict *index.Dictionary, topK, workers int, m *metrics.Metrics) *Loop {
	if workers < 1 {
		workers = 1
	}
	return &Loop{
		engine:  eng,
		idx:     idx,
		dict:    dict,
		topK:    topK,
		workers: workers,
		metrics: m,
		logger:  slog.Default().With("component", "retrieval-loop"),
	}
}

// Run drains the parser and retrieves every topic, returning records in
// topic order regardless of worker count. Topics are independent given
// the shared read-only engine, so they fan out across the worker pool;
// each record slot has exactly one writer.
func (l *Loop) Run(ctx context.Context, parser *topics.Parser) ([]Record, error) {
	var batch []*topics.Topic
	for {
		topic, err := parser.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		batch = append(batch, topic)
	}

	records := make([]Record, len(batch))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for i, topic := range batch {
		i, topic := i, topic
		g.Go(func() error {
			rec, err := l.retrieve(gctx, topic)
			if err != nil {
				return err
			}
			records[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

func (l *Loop) retrieve(ctx context.Context, topic *topics.Topic) (Record, error) {
	query := topics.Render(topic.TokenIDs, l.dict)
	l.observeResolution(topic)

	start := time.Now()
	scored, err := l.engine.Query(ctx, query, l.topK)
	if err != nil {
		return Record{}, apperrors.Newf(apperrors.ErrEngineFailure,
			"topic %s: %v", topic.ID, err)
	}

	results := make([]run.ScoredResult, len(scored))
	for i, doc := range scored {
		externalID, err := l.idx.ExternalID(doc.InternalID)
		if err != nil {
			return Record{}, apperrors.Newf(apperrors.ErrEngineFailure,
				"topic %s: resolving document %d: %v", topic.ID, doc.InternalID, err)
		}
		results[i] = run.ScoredResult{ExternalID: externalID, Score: doc.Score}
	}

	if l.metrics != nil {
		l.metrics.TopicsProcessedTotal.Inc()
		l.metrics.RetrievalLatency.Observe(time.Since(start).Seconds())
		l.metrics.ResultsPerTopic.Observe(float64(len(results)))
	}
	l.logger.Debug("topic retrieved",
		"topic", topic.ID,
		"query", query,
		"results", len(results),
	)
	return Record{TopicID: topic.ID, Results: results}, nil
}

func (l *Loop) observeResolution(topic *topics.Topic) {
	if l.metrics == nil {
		return
	}
	for _, id := range topic.TokenIDs {
		if id == nil {
			l.metrics.QueryTermsResolved.WithLabelValues("unresolved").Inc()
		} else {
			l.metrics.QueryTermsResolved.WithLabelValues("resolved").Inc()
		}
	}
}
