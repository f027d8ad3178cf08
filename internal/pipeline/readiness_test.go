// internal/pipeline/readiness_test.go
package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadinessGateStableFileIsReady(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stable.txt")
	require.NoError(t, os.WriteFile(path, []byte("algebra homework"), 0o644))

	gate := NewReadinessGate(10*time.Millisecond, time.Second)
	res := gate.Wait(context.Background(), path)

	assert.True(t, res.Ready)
	assert.Equal(t, int64(16), res.Size)
	assert.Empty(t, res.Reason)
}

func TestReadinessGateGrowingFileNeverReady(t *testing.T) {
	path := filepath.Join(t.TempDir(), "growing.txt")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	// a writer appending across every poll interval
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			case <-time.After(5 * time.Millisecond):
				f.Write([]byte("chunk"))
				f.Sync()
			}
		}
	}()

	gate := NewReadinessGate(20*time.Millisecond, 250*time.Millisecond)
	res := gate.Wait(context.Background(), path)
	close(stop)
	<-done

	assert.False(t, res.Ready)
	assert.Equal(t, ReasonTimeout, res.Reason)
}

func TestReadinessGateMissingFile(t *testing.T) {
	gate := NewReadinessGate(10*time.Millisecond, time.Second)
	res := gate.Wait(context.Background(), filepath.Join(t.TempDir(), "nope.txt"))

	assert.False(t, res.Ready)
	assert.Equal(t, ReasonMissing, res.Reason)
}

func TestReadinessGateAbortsOnCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slow.txt")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			case <-time.After(5 * time.Millisecond):
				f.Write([]byte("x"))
			}
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	gate := NewReadinessGate(20*time.Millisecond, 5*time.Second)
	res := gate.Wait(ctx, path)
	close(stop)
	<-done

	assert.False(t, res.Ready)
	assert.Equal(t, ReasonAborted, res.Reason)
}
