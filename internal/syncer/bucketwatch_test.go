package syncer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/winpacman/internal/core"
)

func TestBucketWatcherFiresOnManifestChange(t *testing.T) {
	buckets := t.TempDir()
	manifests := filepath.Join(buckets, "main", "bucket")
	require.NoError(t, os.MkdirAll(manifests, 0o755))

	fired := make(chan struct{}, 1)
	bw, err := NewBucketWatcher(buckets, func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	}, nil)
	require.NoError(t, err)
	defer bw.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(manifests, "ripgrep.json"), []byte(`{"version":"14.1.0"}`), 0o644))

	select {
	case <-fired:
	case <-time.After(bucketDebounce + 3*time.Second):
		t.Fatal("watcher never fired after manifest write")
	}
}

func TestWatchBucketsMarksScoopStale(t *testing.T) {
	buckets := t.TempDir()
	manifests := filepath.Join(buckets, "main", "bucket")
	require.NoError(t, os.MkdirAll(manifests, 0o755))

	s, _ := newTestSyncer(t)
	require.NoError(t, s.WatchBuckets(buckets))
	defer s.Close()

	require.NoError(t, os.WriteFile(filepath.Join(manifests, "jq.json"), []byte(`{"version":"1.7"}`), 0o644))

	deadline := time.After(bucketDebounce + 3*time.Second)
	for {
		if s.consumeStale(core.ManagerScoop) {
			return
		}
		select {
		case <-deadline:
			t.Fatal("bucket change never marked scoop stale")
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func TestBucketWatcherIgnoresNonManifests(t *testing.T) {
	buckets := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(buckets, "main", "bucket"), 0o755))

	fired := make(chan struct{}, 1)
	bw, err := NewBucketWatcher(buckets, func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	}, nil)
	require.NoError(t, err)
	defer bw.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(buckets, "main", "bucket", "README.md"), []byte("x"), 0o644))

	select {
	case <-fired:
		t.Fatal("watcher fired for a non-manifest file")
	case <-time.After(bucketDebounce + 500*time.Millisecond):
	}
}
