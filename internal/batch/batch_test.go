package batch

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ir-baselines/qlrun/internal/engine"
	"github.com/ir-baselines/qlrun/internal/index"
	"github.com/ir-baselines/qlrun/internal/run"
	"github.com/ir-baselines/qlrun/internal/smoothing"
	"github.com/ir-baselines/qlrun/internal/topics"
)

// stubEngine returns a canned ranking regardless of query text,
// truncated to the requested depth like a real engine.
type stubEngine struct {
	results []engine.ScoredDoc
	err     error
}

func (s *stubEngine) Query(_ context.Context, _ string, n int) ([]engine.ScoredDoc, error) {
	if s.err != nil {
		return nil, s.err
	}
	results := s.results
	if n > 0 && len(results) > n {
		results = results[:n]
	}
	return results, nil
}

// fakeIndex maps internal IDs to DOC-<id> external IDs.
type fakeIndex struct {
	lengths map[uint32]uint32
}

func (f *fakeIndex) DocumentCount() (uint32, error) {
	return uint32(len(f.lengths)), nil
}

func (f *fakeIndex) DocumentLengthRange() (uint32, uint32, error) {
	return 1, uint32(len(f.lengths)), nil
}

func (f *fakeIndex) DocumentLength(id uint32) (uint32, error) {
	return f.lengths[id], nil
}

func (f *fakeIndex) ExternalID(id uint32) (string, error) {
	if _, ok := f.lengths[id]; !ok {
		return "", fmt.Errorf("no document %d", id)
	}
	return fmt.Sprintf("DOC-%d", id), nil
}

func writeTopicFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testDict() *index.Dictionary {
	return index.DictionaryFromPairs(map[uint32]string{5: "cat", 7: "dog"})
}

// Two documents with lengths 10 and 30, one topic matching document 2
// at 0.9 and document 1 at 0.1, top_k=1: the run holds exactly one
// line ranking document 2 first.
func TestLoopTopKOne(t *testing.T) {
	idx := &fakeIndex{lengths: map[uint32]uint32{1: 10, 2: 30}}
	eng := &stubEngine{results: []engine.ScoredDoc{
		{InternalID: 2, Score: 0.9},
		{InternalID: 1, Score: 0.1},
	}}
	topicFile := writeTopicFile(t, "topics.txt", "T1;cat dog\n")
	parser, err := topics.Open(topicFile, testDict(), false, 0)
	require.NoError(t, err)
	defer parser.Close()

	loop := NewLoop(eng, idx, testDict(), 1, 1, nil)
	records, err := loop.Run(context.Background(), parser)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "T1", records[0].TopicID)
	require.Len(t, records[0].Results, 1)
	assert.Equal(t, run.ScoredResult{ExternalID: "DOC-2", Score: 0.9}, records[0].Results[0])

	outPath := filepath.Join(t.TempDir(), "run-topics.txt")
	writer := run.NewWriter("indri")
	for _, rec := range records {
		writer.Add(rec.TopicID, rec.Results)
	}
	require.NoError(t, writer.Close(outPath, false))

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, "T1 Q0 DOC-2 1 0.9 indri\n", string(data))
}

func TestLoopPreservesTopicOrderWithWorkers(t *testing.T) {
	idx := &fakeIndex{lengths: map[uint32]uint32{1: 10}}
	eng := &stubEngine{results: []engine.ScoredDoc{{InternalID: 1, Score: 0.5}}}

	var sb strings.Builder
	for i := 1; i <= 20; i++ {
		fmt.Fprintf(&sb, "T%d;cat\n", i)
	}
	topicFile := writeTopicFile(t, "topics.txt", sb.String())
	parser, err := topics.Open(topicFile, testDict(), false, 0)
	require.NoError(t, err)
	defer parser.Close()

	loop := NewLoop(eng, idx, testDict(), 10, 4, nil)
	records, err := loop.Run(context.Background(), parser)
	require.NoError(t, err)
	require.Len(t, records, 20)
	for i, rec := range records {
		assert.Equal(t, fmt.Sprintf("T%d", i+1), rec.TopicID)
	}
}

func TestLoopEngineFailureAbortsBatch(t *testing.T) {
	idx := &fakeIndex{lengths: map[uint32]uint32{1: 10}}
	eng := &stubEngine{err: fmt.Errorf("index corrupted")}
	topicFile := writeTopicFile(t, "topics.txt", "T1;cat\nT2;dog\n")
	parser, err := topics.Open(topicFile, testDict(), false, 0)
	require.NoError(t, err)
	defer parser.Close()

	loop := NewLoop(eng, idx, testDict(), 10, 1, nil)
	_, err = loop.Run(context.Background(), parser)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index corrupted")
}

func TestLoopUnmappableDocumentAbortsBatch(t *testing.T) {
	idx := &fakeIndex{lengths: map[uint32]uint32{1: 10}}
	eng := &stubEngine{results: []engine.ScoredDoc{{InternalID: 42, Score: 0.5}}}
	topicFile := writeTopicFile(t, "topics.txt", "T1;cat\n")
	parser, err := topics.Open(topicFile, testDict(), false, 0)
	require.NoError(t, err)
	defer parser.Close()

	loop := NewLoop(eng, idx, testDict(), 10, 1, nil)
	_, err = loop.Run(context.Background(), parser)
	assert.Error(t, err)
}

const fixtureSchema = `
CREATE TABLE documents (
	internal_id INTEGER PRIMARY KEY,
	external_id TEXT NOT NULL UNIQUE,
	length      INTEGER NOT NULL
);
CREATE TABLE terms (
	token_id      INTEGER PRIMARY KEY,
	term          TEXT NOT NULL UNIQUE,
	collection_tf INTEGER NOT NULL
);
CREATE TABLE postings (
	token_id    INTEGER NOT NULL,
	internal_id INTEGER NOT NULL,
	tf          INTEGER NOT NULL,
	PRIMARY KEY (token_id, internal_id)
);
`

func openFixtureStore(t *testing.T) (*index.Store, *index.Dictionary) {
	t.Helper()
	dir := t.TempDir()
	db, err := sql.Open("sqlite", filepath.Join(dir, index.DBFileName))
	require.NoError(t, err)
	_, err = db.Exec(fixtureSchema)
	require.NoError(t, err)
	_, err = db.Exec(`
		INSERT INTO documents VALUES (1, 'DOC-1', 10), (2, 'DOC-2', 30);
		INSERT INTO terms VALUES (5, 'cat', 6), (7, 'dog', 3);
		INSERT INTO postings VALUES (5, 1, 5), (5, 2, 1), (7, 2, 3);
	`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	store, err := index.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	dict, err := index.NewDictionary(store)
	require.NoError(t, err)
	return store, dict
}

func orchestratorParams(store *index.Store, dict *index.Dictionary, topicFiles []string, runOut string) Params {
	return Params{
		Store:           store,
		Dict:            dict,
		SmoothingMethod: smoothing.Dirichlet,
		SmoothingParam:  mustAutoParam(),
		TopicFiles:      topicFiles,
		RunOut:          runOut,
		RunTag:          "indri",
		TopK:            1000,
		Workers:         1,
	}
}

func mustAutoParam() smoothing.ParamSpec {
	p, err := smoothing.ParseParam("auto")
	if err != nil {
		panic(err)
	}
	return p
}

func TestOrchestratorWritesRunFile(t *testing.T) {
	store, dict := openFixtureStore(t)
	topicFile := writeTopicFile(t, "topics.txt", "T1;cat\n")
	runOut := filepath.Join(t.TempDir(), "baseline")

	orch := New(orchestratorParams(store, dict, []string{topicFile}, runOut))
	require.NoError(t, orch.Run(context.Background()))

	outPath := runOut + "-topics.txt"
	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 2, "cat matches both documents")

	fields := strings.Fields(lines[0])
	require.Len(t, fields, 6)
	assert.Equal(t, "T1", fields[0])
	assert.Equal(t, "Q0", fields[1])
	assert.Equal(t, "DOC-1", fields[2], "denser document ranks first")
	assert.Equal(t, "1", fields[3])
	assert.Equal(t, "indri", fields[5])
}

func TestOrchestratorSkipsExistingRunFile(t *testing.T) {
	store, dict := openFixtureStore(t)
	topicFile := writeTopicFile(t, "topics.txt", "T1;cat\n")
	outDir := t.TempDir()
	runOut := filepath.Join(outDir, "baseline")

	existing := []byte("stale content\n")
	outPath := runOut + "-topics.txt"
	require.NoError(t, os.WriteFile(outPath, existing, 0o644))

	orch := New(orchestratorParams(store, dict, []string{topicFile}, runOut))
	require.NoError(t, orch.Run(context.Background()))

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, existing, data, "existing run files are never recomputed")
}

func TestOrchestratorStrictParseErrorAborts(t *testing.T) {
	store, dict := openFixtureStore(t)
	topicFile := writeTopicFile(t, "topics.txt", "T1;zebra\n")
	runOut := filepath.Join(t.TempDir(), "baseline")

	params := orchestratorParams(store, dict, []string{topicFile}, runOut)
	params.Strict = true
	orch := New(params)
	err := orch.Run(context.Background())
	require.Error(t, err)
	assert.NoFileExists(t, runOut+"-topics.txt")
}

func TestOrchestratorInvalidParameterFailsBeforeRetrieval(t *testing.T) {
	store, dict := openFixtureStore(t)
	topicFile := writeTopicFile(t, "topics.txt", "T1;cat\n")
	runOut := filepath.Join(t.TempDir(), "baseline")

	params := orchestratorParams(store, dict, []string{topicFile}, runOut)
	badParam, err := smoothing.ParseParam("-5")
	require.NoError(t, err)
	params.SmoothingParam = badParam
	orch := New(params)

	err = orch.Run(context.Background())
	require.Error(t, err)
	assert.NoFileExists(t, runOut+"-topics.txt")
}
