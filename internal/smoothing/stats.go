package smoothing

import (
	"fmt"

	"github.com/ir-baselines/qlrun/internal/index"
)

// StatsFromIndex snapshots corpus statistics from the index. The
// average document length is the exact arithmetic mean over the full
// internal document-ID range, not a sample.
func StatsFromIndex(idx index.Index) (CorpusStats, error) {
	count, err := idx.DocumentCount()
	if err != nil {
		return CorpusStats{}, fmt.Errorf("snapshotting corpus stats: %w", err)
	}
	if count == 0 {
		return CorpusStats{}, fmt.Errorf("snapshotting corpus stats: index is empty")
	}
	minID, maxID, err := idx.DocumentLengthRange()
	if err != nil {
		return CorpusStats{}, fmt.Errorf("snapshotting corpus stats: %w", err)
	}
	var total uint64
	var n uint64
	for id := minID; ; id++ {
		length, err := idx.DocumentLength(id)
		if err != nil {
			return CorpusStats{}, fmt.Errorf("snapshotting corpus stats: %w", err)
		}
		total += uint64(length)
		n++
		if id == maxID {
			break
		}
	}
	return CorpusStats{
		DocumentCount: count,
		AvgDocLength:  float64(total) / float64(n),
	}, nil
}
