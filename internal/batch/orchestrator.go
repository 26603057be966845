package batch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/ir-baselines/qlrun/internal/engine"
	"github.com/ir-baselines/qlrun/internal/index"
	"github.com/ir-baselines/qlrun/internal/run"
	"github.com/ir-baselines/qlrun/internal/smoothing"
	"github.com/ir-baselines/qlrun/internal/topics"
	"github.com/ir-baselines/qlrun/pkg/metrics"
)

// Params carries everything an orchestrated batch needs. Store and Dict
// are opened by the caller and shared read-only for the whole run.
type Params struct {
	Store *index.Store
	Dict  *index.Dictionary

	SmoothingMethod smoothing.Method
	SmoothingParam  smoothing.ParamSpec

	TopicFiles []string
	RunOut     string
	RunTag     string

	TopK       int
	Strict     bool
	MaxQueries int
	Overwrite  bool
	Workers    int

	Feedback      bool
	FeedbackDocs  int
	FeedbackTerms int

	Metrics *metrics.Metrics
}

// Orchestrator drives a batch: smoothing is resolved once, the engine
// is built once, then every topic file goes through gate, retrieval
// loop, and atomic run-file commit, sequentially and in input order.
type Orchestrator struct {
	params Params
	logger *slog.Logger
}

func New(params Params) *Orchestrator {
	return &Orchestrator{
		params: params,
		logger: slog.Default().With("component", "orchestrator"),
	}
}

// Run executes the batch. Any fatal error from smoothing resolution,
// engine construction, retrieval, or serialization aborts immediately;
// an already-existing run file is the only skippable condition.
func (o *Orchestrator) Run(ctx context.Context) error {
	stats, err := smoothing.StatsFromIndex(o.params.Store)
	if err != nil {
		return err
	}
	spec, err := smoothing.Resolve(o.params.SmoothingMethod, o.params.SmoothingParam, stats)
	if err != nil {
		return err
	}
	directive := spec.Directive()
	o.logger.Info("smoothing configured",
		"method", spec.Method.String(),
		"param", spec.Param,
		"directive", directive,
	)

	ql, err := engine.New(o.params.Store, o.params.Dict, []string{directive})
	if err != nil {
		return err
	}
	var eng engine.Engine = ql
	if o.params.Feedback {
		eng = engine.NewFeedback(ql, o.params.Store, o.params.Dict,
			o.params.FeedbackDocs, o.params.FeedbackTerms)
		o.logger.Info("pseudo-relevance feedback enabled",
			"fb_docs", o.params.FeedbackDocs,
			"fb_terms", o.params.FeedbackTerms,
		)
	}

	loop := NewLoop(eng, o.params.Store, o.params.Dict,
		o.params.TopK, o.params.Workers, o.params.Metrics)

	for _, topicFile := range o.params.TopicFiles {
		if err := o.runTopicFile(ctx, loop, topicFile); err != nil {
			return err
		}
	}
	return nil
}

// runTopicFile is one gate → retrieve → write cycle. The gate check and
// the final commit both happen on this goroutine, so no two writers can
// race for the same output path.
func (o *Orchestrator) runTopicFile(ctx context.Context, loop *Loop, topicFile string) error {
	outPath := fmt.Sprintf("%s-%s", o.params.RunOut, filepath.Base(topicFile))
	if run.ShouldSkip(outPath) {
		o.logger.Warn("run file exists, skipping topic file",
			"topic_file", topicFile,
			"run_file", outPath,
		)
		if o.params.Metrics != nil {
			o.params.Metrics.RunFilesTotal.WithLabelValues("skipped").Inc()
		}
		return nil
	}

	parser, err := topics.Open(topicFile, o.params.Dict, o.params.Strict, o.params.MaxQueries)
	if err != nil {
		return err
	}
	defer parser.Close()

	records, err := loop.Run(ctx, parser)
	if err != nil {
		return err
	}

	writer := run.NewWriter(o.params.RunTag)
	for _, rec := range records {
		writer.Add(rec.TopicID, rec.Results)
	}
	if err := writer.Close(outPath, o.params.Overwrite); err != nil {
		return err
	}
	if o.params.Metrics != nil {
		o.params.Metrics.RunFilesTotal.WithLabelValues("written").Inc()
	}
	o.logger.Info("run file written",
		"topic_file", topicFile,
		"run_file", outPath,
		"topics", writer.Len(),
	)
	return nil
}
