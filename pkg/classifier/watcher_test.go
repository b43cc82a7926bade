package classifier

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestWatcherReloadsChangedArtifacts(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	writeArtifacts(t, dir, testVocab, testLabels, testWeight)
	src := NewDirSource(dir)
	m, err := Load(context.Background(), src)
	require.NoError(t, err)
	holder := NewHolder(m)

	w, err := NewWatcher(src, holder, 50*time.Millisecond)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	writeArtifacts(t, dir, testVocab, map[string]string{"0": "Bad", "1": "Good"}, testWeight)
	require.Eventually(t, func() bool {
		return holder.Current().HasLabel("Good")
	}, 5*time.Second, 20*time.Millisecond)

	reloaded := holder.Current()
	require.NoError(t, os.WriteFile(filepath.Join(dir, WeightFile), []byte(`{"linear.weight": [[1]], "linear.bias": [0]}`), 0o644))
	time.Sleep(300 * time.Millisecond)
	require.Same(t, reloaded, holder.Current(), "invalid artifacts must not replace the serving model")
}

func TestWatcherIgnoresUnrelatedFiles(t *testing.T) {
	require.True(t, isArtifact("/models/"+VocabFile))
	require.False(t, isArtifact("/models/notes.txt"))
}

func TestNewWatcherMissingDir(t *testing.T) {
	_, err := NewWatcher(NewDirSource(filepath.Join(t.TempDir(), "missing")), NewHolder(nil), 0)
	require.Error(t, err)
}
