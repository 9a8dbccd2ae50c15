package syncer

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// bucketDebounce batches the burst of writes a `scoop bucket update`
// produces into one refresh.
const bucketDebounce = 2 * time.Second

// BucketWatcher watches the Scoop buckets tree and invokes its callback
// when bucket manifests change, so the Scoop slice stays current without
// polling.
type BucketWatcher struct {
	watcher  *fsnotify.Watcher
	onChange func()
	log      *zap.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewBucketWatcher watches bucketsDir and its bucket manifest
// subdirectories. onChange fires debounced, from the watcher goroutine.
func NewBucketWatcher(bucketsDir string, onChange func(), log *zap.Logger) (*BucketWatcher, error) {
	if log == nil {
		log = zap.NewNop()
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	bw := &BucketWatcher{
		watcher:  w,
		onChange: onChange,
		log:      log,
		stopCh:   make(chan struct{}),
	}

	if err := w.Add(bucketsDir); err != nil {
		w.Close()
		return nil, err
	}
	// Watch each bucket's manifest directory; fsnotify is not recursive.
	buckets, err := os.ReadDir(bucketsDir)
	if err != nil {
		w.Close()
		return nil, err
	}
	for _, bucket := range buckets {
		if !bucket.IsDir() {
			continue
		}
		dir := filepath.Join(bucketsDir, bucket.Name(), "bucket")
		if _, err := os.Stat(dir); err != nil {
			dir = filepath.Join(bucketsDir, bucket.Name())
		}
		if err := w.Add(dir); err != nil {
			log.Warn("failed to watch bucket", zap.String("dir", dir), zap.Error(err))
		}
	}

	bw.wg.Add(1)
	go bw.run()
	return bw, nil
}

func (bw *BucketWatcher) run() {
	defer bw.wg.Done()

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case ev, ok := <-bw.watcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(ev.Name, ".json") {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(bucketDebounce)
				timerC = timer.C
			} else {
				timer.Reset(bucketDebounce)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			bw.log.Debug("scoop buckets changed, refreshing")
			bw.onChange()

		case err, ok := <-bw.watcher.Errors:
			if !ok {
				return
			}
			bw.log.Warn("bucket watcher error", zap.Error(err))

		case <-bw.stopCh:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// Stop halts the watcher.
func (bw *BucketWatcher) Stop() error {
	close(bw.stopCh)
	err := bw.watcher.Close()
	bw.wg.Wait()
	return err
}
