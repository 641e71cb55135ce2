package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingReloader struct {
	calls  atomic.Int32
	loaded int
}

func (r *countingReloader) ReloadSegments() (int, error) {
	r.calls.Add(1)
	return r.loaded, nil
}

type countingInvalidator struct {
	calls atomic.Int32
}

func (i *countingInvalidator) Invalidate(context.Context) error {
	i.calls.Add(1)
	return nil
}

func TestWatcher_ReloadsOnSegmentAndInvalidates(t *testing.T) {
	dir := t.TempDir()
	rel := &countingReloader{loaded: 1}
	inv := &countingInvalidator{}
	w, err := New(dir, rel, inv, 20*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	tmp := filepath.Join(dir, "seg_1.prfs.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte("x"), 0o644))
	require.NoError(t, os.Rename(tmp, filepath.Join(dir, "seg_1.prfs")))

	assert.Eventually(t, func() bool { return rel.calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return inv.calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	rel := &countingReloader{}
	w, err := New(dir, rel, nil, 10*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seg_2.prfs.tmp"), []byte("x"), 0o644))
	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, rel.calls.Load())
}

func TestWatcher_NoInvalidateWhenNothingLoaded(t *testing.T) {
	dir := t.TempDir()
	rel := &countingReloader{loaded: 0}
	inv := &countingInvalidator{}
	w, err := New(dir, rel, inv, 10*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "seg_3.prfs"), []byte("x"), 0o644))
	assert.Eventually(t, func() bool { return rel.calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, inv.calls.Load())
}

func TestWatcher_StartFailsOnMissingDir(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "missing"), &countingReloader{}, nil, 0)
	require.NoError(t, err)
	assert.Error(t, w.Start(context.Background()))
}
