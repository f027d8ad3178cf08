// internal/audit/logger_test.go
package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLoggerRequiresSink(t *testing.T) {
	_, err := NewLogger(zap.NewNop())
	require.Error(t, err)
}

func TestFileSinkAppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	sink, err := NewFileSink(path)
	require.NoError(t, err)

	recs := []*Record{
		NewRecord("/watch/a.txt", StageDebounce, OutcomeSettled, "settled"),
		NewRecord("/watch/a.txt", StageReadiness, OutcomeReady, "size stable at 12 bytes"),
		NewRecord("/watch/b.txt", StageAction, OutcomeActionFailed, "permission denied"),
	}
	for _, r := range recs {
		require.NoError(t, sink.Append(r))
	}
	require.NoError(t, sink.Close())

	got := readRecords(t, path)
	require.Len(t, got, 3)
	assert.Equal(t, "/watch/a.txt", got[0].Path)
	assert.Equal(t, StageDebounce, got[0].Stage)
	assert.Equal(t, OutcomeSettled, got[0].Outcome)
	assert.Equal(t, OutcomeActionFailed, got[2].Outcome)
	assert.NotEmpty(t, got[0].ID)
	assert.False(t, got[0].Timestamp.IsZero())
}

func TestLoggerSerializesConcurrentEmitters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	sink, err := NewFileSink(path)
	require.NoError(t, err)

	logger, err := NewLogger(zap.NewNop(), sink)
	require.NoError(t, err)
	require.NoError(t, logger.Start())

	const emitters = 8
	const perEmitter = 50

	var wg sync.WaitGroup
	for i := 0; i < emitters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perEmitter; j++ {
				logger.Record("/watch/file.txt", StageDecide, OutcomeDecided, "route School")
			}
		}()
	}
	wg.Wait()

	require.NoError(t, logger.Stop(5*time.Second))

	// every line must be parseable: no interleaved or torn writes
	got := readRecords(t, path)
	require.Len(t, got, emitters*perEmitter)
}

func TestLoggerStopDrainsPending(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	sink, err := NewFileSink(path)
	require.NoError(t, err)

	logger, err := NewLogger(zap.NewNop(), sink)
	require.NoError(t, err)
	require.NoError(t, logger.Start())

	for i := 0; i < 100; i++ {
		logger.Record("/watch/x.txt", StageSample, OutcomeSampled, "preview")
	}
	require.NoError(t, logger.Stop(5*time.Second))

	assert.Len(t, readRecords(t, path), 100)

	// a second stop is an error, not a panic
	require.Error(t, logger.Stop(time.Second))
}

func TestLoggerEmitAfterStopIsDropped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	sink, err := NewFileSink(path)
	require.NoError(t, err)

	logger, err := NewLogger(zap.NewNop(), sink)
	require.NoError(t, err)
	require.NoError(t, logger.Start())
	require.NoError(t, logger.Stop(time.Second))

	// must not panic on the closed channel
	logger.Record("/watch/late.txt", StageAction, OutcomeSuccess, "")
	assert.Empty(t, readRecords(t, path))
}

func readRecords(t *testing.T, path string) []Record {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var recs []Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var r Record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &r), "line: %s", scanner.Text())
		recs = append(recs, r)
	}
	require.NoError(t, scanner.Err())
	return recs
}
