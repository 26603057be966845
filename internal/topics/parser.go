package topics

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ir-baselines/qlrun/internal/index"
	apperrors "github.com/ir-baselines/qlrun/pkg/errors"
)

// Topic is one evaluation query: an identifier plus the token IDs of
// its analyzed terms. A nil entry is a term with no dictionary entry.
type Topic struct {
	ID       string
	TokenIDs []*uint32
}

// Parser lazily yields topics from one topic file, in file order. It is
// consumed exactly once; the only state is the file cursor. Topic lines
// are "topicID;query text" (a tab separator is also accepted).
type Parser struct {
	file       *os.File
	scanner    *bufio.Scanner
	dict       *index.Dictionary
	strict     bool
	maxQueries int
	yielded    int
	logger     *slog.Logger
}

// Open opens a topic file for lazy iteration. maxQueries caps the
// number of topics yielded; zero means unlimited. In strict mode a
// topic with zero resolvable tokens is an error; otherwise it is
// silently skipped.
func Open(path string, dict *index.Dictionary, strict bool, maxQueries int) (*Parser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrMissingInput, "opening topic file %s: %v", path, err)
	}
	return &Parser{
		file:       f,
		scanner:    bufio.NewScanner(f),
		dict:       dict,
		strict:     strict,
		maxQueries: maxQueries,
		logger:     slog.Default().With("component", "topic-parser"),
	}, nil
}

// Next returns the next topic, or io.EOF when the file (or the
// maxQueries cap) is exhausted.
func (p *Parser) Next() (*Topic, error) {
	for {
		if p.maxQueries > 0 && p.yielded >= p.maxQueries {
			return nil, io.EOF
		}
		if !p.scanner.Scan() {
			if err := p.scanner.Err(); err != nil {
				return nil, fmt.Errorf("reading topic file %s: %w", p.file.Name(), err)
			}
			return nil, io.EOF
		}
		line := strings.TrimSpace(p.scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		id, text, err := splitTopicLine(line)
		if err != nil {
			return nil, fmt.Errorf("topic file %s: %w", p.file.Name(), err)
		}
		topic := &Topic{ID: id}
		resolved := 0
		for _, term := range Analyze(text) {
			if tokenID, ok := p.dict.TokenID(term); ok {
				tid := tokenID
				topic.TokenIDs = append(topic.TokenIDs, &tid)
				resolved++
			} else {
				topic.TokenIDs = append(topic.TokenIDs, nil)
			}
		}
		if resolved == 0 {
			if p.strict {
				return nil, fmt.Errorf("topic file %s: topic %s has no resolvable terms",
					p.file.Name(), topic.ID)
			}
			p.logger.Debug("skipping topic with no resolvable terms", "topic", topic.ID)
			continue
		}
		p.yielded++
		return topic, nil
	}
}

func (p *Parser) Close() error {
	return p.file.Close()
}

func splitTopicLine(line string) (id, text string, err error) {
	if before, after, found := strings.Cut(line, ";"); found {
		return strings.TrimSpace(before), strings.TrimSpace(after), nil
	}
	if before, after, found := strings.Cut(line, "\t"); found {
		return strings.TrimSpace(before), strings.TrimSpace(after), nil
	}
	return "", "", fmt.Errorf("malformed topic line %q", line)
}
