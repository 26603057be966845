package run

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/hscells/trecresults"

	apperrors "github.com/ir-baselines/qlrun/pkg/errors"
)

// Iteration is the literal second column of a TREC run line.
const Iteration = "Q0"

// Writer accumulates one run: the ranked results of every topic in one
// topic file. It is write-once — built empty, appended to per topic,
// then committed exactly once with Close.
type Writer struct {
	runTag string
	topics []string
	lists  map[string]trecresults.ResultList
}

// NewWriter creates an empty run tagged with runTag.
func NewWriter(runTag string) *Writer {
	return &Writer{
		runTag: runTag,
		lists:  make(map[string]trecresults.ResultList),
	}
}

// Add appends a topic's ranking to the run, assigning 1-based
// contiguous ranks in list order. Adding the same topic twice is a
// programming error and panics.
func (w *Writer) Add(topicID string, results []ScoredResult) {
	if _, dup := w.lists[topicID]; dup {
		panic(apperrors.Newf(apperrors.ErrDuplicateTopic, "topic %s added twice", topicID))
	}
	list := make(trecresults.ResultList, len(results))
	for i, r := range results {
		list[i] = &trecresults.Result{
			Topic:     topicID,
			Iteration: Iteration,
			DocId:     r.ExternalID,
			Rank:      int64(i + 1),
			Score:     r.Score,
			RunName:   w.runTag,
		}
	}
	w.topics = append(w.topics, topicID)
	w.lists[topicID] = list
}

// ScoredResult is one ranked document in external-ID space. Order and
// score come from the engine untouched.
type ScoredResult struct {
	ExternalID string
	Score      float64
}

// Len returns the number of topics accumulated so far.
func (w *Writer) Len() int {
	return len(w.topics)
}

// Close serializes the run to path. If path exists and overwrite is
// false it fails with ErrAlreadyExists, leaving the existing file
// untouched. The write is atomic: the run is written to a temporary
// file in the target directory, synced, and renamed into place, so an
// interrupted run never leaves a partial file at the final path.
func (w *Writer) Close(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return apperrors.Newf(apperrors.ErrAlreadyExists, "%s", path)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("creating temporary run file: %w", err)
	}
	defer os.Remove(tmp.Name())

	buf := bufio.NewWriter(tmp)
	for _, topicID := range w.topics {
		for _, r := range w.lists[topicID] {
			_, err := fmt.Fprintf(buf, "%s %s %s %d %s %s\n",
				r.Topic, r.Iteration, r.DocId, r.Rank,
				strconv.FormatFloat(r.Score, 'f', -1, 64), r.RunName)
			if err != nil {
				tmp.Close()
				return fmt.Errorf("writing run file %s: %w", path, err)
			}
		}
	}
	if err := buf.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("writing run file %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing run file %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing run file %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("committing run file %s: %w", path, err)
	}
	return nil
}
