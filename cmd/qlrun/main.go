// Command qlrun runs batches of topic files against a pre-built index
// and writes one TREC-eval run file per topic file.
//
// Usage:
//
//	qlrun --index <dir> --queries topics.txt [--queries more.txt] [flags] <run_out>
//
// Each topic file's run is written to {run_out}-{basename(topicFile)}.
// Run files that already exist are skipped, which makes interrupted
// batches resumable by rerunning the same command.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ir-baselines/qlrun/internal/batch"
	"github.com/ir-baselines/qlrun/internal/index"
	"github.com/ir-baselines/qlrun/internal/smoothing"
	"github.com/ir-baselines/qlrun/pkg/config"
	apperrors "github.com/ir-baselines/qlrun/pkg/errors"
	"github.com/ir-baselines/qlrun/pkg/logger"
	"github.com/ir-baselines/qlrun/pkg/metrics"
)

type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	var queries stringList
	configPath := flag.String("config", "", "path to optional YAML config file")
	indexDir := flag.String("index", "", "index directory (required)")
	flag.Var(&queries, "queries", "topic file to run (repeatable)")
	strict := flag.Bool("strict", false, "reject topics with no resolvable terms")
	topK := flag.Int("top_k", 1000, "results per topic (non-positive means all)")
	smoothingMethod := flag.String("smoothing_method", "dirichlet", "smoothing method: jm or dirichlet")
	smoothingParam := flag.String("smoothing_param", "auto", "smoothing parameter: auto or a number")
	prf := flag.Bool("prf", false, "enable pseudo-relevance feedback")
	fbDocs := flag.Int("fb_docs", 10, "feedback documents (with --prf)")
	fbTerms := flag.Int("fb_terms", 10, "feedback terms (with --prf)")
	numQueries := flag.Int("num_queries", 0, "max topics per topic file (0 = unlimited)")
	logLevel := flag.String("loglevel", "", "log level: debug, info, warn, error")
	overwrite := flag.Bool("overwrite", false, "overwrite existing run files instead of failing")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(apperrors.ExitFatal)
	}
	applyFlags(cfg, indexDir, strict, topK, smoothingMethod, smoothingParam,
		prf, fbDocs, fbTerms, numQueries, logLevel)

	if err := logger.Setup(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(apperrors.ExitLogSetup)
	}

	if err := realMain(cfg, queries, flag.Args(), *overwrite); err != nil {
		slog.Error("batch failed", "error", err)
		os.Exit(apperrors.ExitCode(err))
	}
}

// applyFlags copies explicitly set flag values over the loaded config,
// so precedence is flags > environment > config file > defaults.
func applyFlags(cfg *config.Config, indexDir *string, strict *bool, topK *int,
	method, param *string, prf *bool, fbDocs, fbTerms, numQueries *int, logLevel *string) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "index":
			cfg.Index.Dir = *indexDir
		case "strict":
			cfg.Retrieval.Strict = *strict
		case "top_k":
			cfg.Retrieval.TopK = *topK
		case "smoothing_method":
			cfg.Retrieval.SmoothingMethod = *method
		case "smoothing_param":
			cfg.Retrieval.SmoothingParam = *param
		case "prf":
			cfg.Feedback.Enabled = *prf
		case "fb_docs":
			cfg.Feedback.Docs = *fbDocs
		case "fb_terms":
			cfg.Feedback.Terms = *fbTerms
		case "num_queries":
			cfg.Retrieval.MaxQueries = *numQueries
		case "loglevel":
			cfg.Logging.Level = *logLevel
		}
	})
}

func realMain(cfg *config.Config, queries []string, args []string, overwrite bool) error {
	if len(args) != 1 {
		return apperrors.New(apperrors.ErrMissingInput, "exactly one run_out argument is required")
	}
	runOut := args[0]
	if cfg.Index.Dir == "" {
		return apperrors.New(apperrors.ErrMissingInput, "--index is required")
	}
	if len(queries) == 0 {
		return apperrors.New(apperrors.ErrMissingInput, "at least one --queries file is required")
	}
	for _, q := range queries {
		if _, err := os.Stat(q); err != nil {
			return apperrors.Newf(apperrors.ErrMissingInput, "topic file %s: %v", q, err)
		}
	}
	if cfg.Feedback.Enabled && (cfg.Feedback.Docs < 1 || cfg.Feedback.Terms < 1) {
		return apperrors.New(apperrors.ErrInvalidParameter, "--fb_docs and --fb_terms must be positive")
	}

	method, err := smoothing.ParseMethod(cfg.Retrieval.SmoothingMethod)
	if err != nil {
		return err
	}
	param, err := smoothing.ParseParam(cfg.Retrieval.SmoothingParam)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := index.Open(cfg.Index.Dir)
	if err != nil {
		return apperrors.Newf(apperrors.ErrMissingInput, "%v", err)
	}
	defer store.Close()

	dict, err := index.NewDictionary(store)
	if err != nil {
		return err
	}
	slog.Info("dictionary loaded", "terms", dict.Size())

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(prometheus.DefaultRegisterer)
		shutdown := metrics.StartServer(cfg.Metrics.Port)
		defer shutdown(context.Background())
	}

	orch := batch.New(batch.Params{
		Store:           store,
		Dict:            dict,
		SmoothingMethod: method,
		SmoothingParam:  param,
		TopicFiles:      queries,
		RunOut:          runOut,
		RunTag:          cfg.Retrieval.RunTag,
		TopK:            cfg.Retrieval.TopK,
		Strict:          cfg.Retrieval.Strict,
		MaxQueries:      cfg.Retrieval.MaxQueries,
		Overwrite:       overwrite,
		Workers:         cfg.Retrieval.Workers,
		Feedback:        cfg.Feedback.Enabled,
		FeedbackDocs:    cfg.Feedback.Docs,
		FeedbackTerms:   cfg.Feedback.Terms,
		Metrics:         m,
	})
	return orch.Run(ctx)
}
