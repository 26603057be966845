// Package run accumulates per-topic rankings and serializes them to
// TREC-eval run files, with an existence gate that makes multi-file
// batches resumable.
package run

import "os"

// ShouldSkip reports whether prior work exists at path. Existence alone
// is the signal: no content validation is performed, so a completed
// topic file is never recomputed or overwritten on rerun.
func ShouldSkip(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
