package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/raaihank/textfix/internal/config"
	"github.com/raaihank/textfix/internal/corrector"
	"github.com/raaihank/textfix/internal/dataset"
	"github.com/raaihank/textfix/internal/logger"
)

// settle is longer than the watcher's debounce delay
const settle = 800 * time.Millisecond

func writeDataset(t *testing.T, path, replacement string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("spelling:\n  teh: "+replacement+"\n"), 0o644))
}

func correctTeh(t *testing.T, svc *corrector.Service) string {
	t.Helper()
	res, err := svc.Correct(context.Background(), corrector.Request{Text: "teh"})
	require.NoError(t, err)
	return res.Corrected
}

func newReloaderFixture(t *testing.T) (*corrector.Service, *datasetReloader, string, string) {
	t.Helper()

	// separate directories so each watcher only sees its own file
	a := filepath.Join(t.TempDir(), "a.yaml")
	b := filepath.Join(t.TempDir(), "b.yaml")
	writeDataset(t, a, "THE_A")
	writeDataset(t, b, "THE_B")

	d, err := dataset.LoadFile(a)
	require.NoError(t, err)
	svc, err := corrector.NewService(corrector.Config{}, d, logger.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	r := newDatasetReloader(ctx, svc, zap.NewNop())
	t.Cleanup(func() {
		r.stop()
		cancel()
	})

	require.NoError(t, r.follow(a, true))
	return svc, r, a, b
}

func TestDatasetReloaderFollowsNewPath(t *testing.T) {
	svc, r, a, b := newReloaderFixture(t)
	require.Equal(t, "THE_A", correctTeh(t, svc))

	require.NoError(t, r.switchTo(b, true))
	assert.Equal(t, "THE_B", correctTeh(t, svc))

	path, watching := r.current()
	assert.Equal(t, b, path)
	assert.True(t, watching)

	// edits to the previous file no longer reach the service
	writeDataset(t, a, "THE_A_EDIT")
	time.Sleep(settle)
	assert.Equal(t, "THE_B", correctTeh(t, svc))

	writeDataset(t, b, "THE_B_EDIT")
	assert.Eventually(t, func() bool {
		return correctTeh(t, svc) == "THE_B_EDIT"
	}, 5*time.Second, 50*time.Millisecond)
}

func TestDatasetReloaderApplyConfig(t *testing.T) {
	svc, r, a, b := newReloaderFixture(t)

	next := config.GetDefaults()
	next.Dataset.Path = b
	next.Dataset.Watch = false
	require.NoError(t, r.applyConfig(next))
	assert.Equal(t, "THE_B", correctTeh(t, svc))

	_, watching := r.current()
	assert.False(t, watching)

	writeDataset(t, a, "THE_A_EDIT")
	writeDataset(t, b, "THE_B_EDIT")
	time.Sleep(settle)
	assert.Equal(t, "THE_B", correctTeh(t, svc), "nothing is watched")

	// turning watch back on for the same path needs no reload
	next.Dataset.Watch = true
	require.NoError(t, r.applyConfig(next))
	_, watching = r.current()
	assert.True(t, watching)

	next.Dataset.Source = "store"
	assert.Error(t, r.applyConfig(next))
}

func TestDatasetReloaderKeepsStateOnBadPath(t *testing.T) {
	svc, r, a, _ := newReloaderFixture(t)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("spelling: [[[\n"), 0o644))

	assert.Error(t, r.switchTo(bad, true))
	assert.Equal(t, "THE_A", correctTeh(t, svc))

	path, watching := r.current()
	assert.Equal(t, a, path)
	assert.True(t, watching)
}
