package ingest

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchResult reports the outcome of a re-ingestion triggered by a file change.
type WatchResult struct {
	Path   string
	Chunks int
	Err    error
}

// ReplaceFunc swaps the index contents for the document at path.
type ReplaceFunc func(ctx context.Context, path string) (int, error)

// Watch calls replace for path every time the file is written or recreated.
// Bursts of events within debounce collapse into one run. A nil replace means
// p.Replace; callers that query the index concurrently pass a replace that
// excludes their queries. Results are delivered on the returned channel, which
// closes when ctx is done.
func (p *Pipeline) Watch(ctx context.Context, path string, debounce time.Duration, replace ReplaceFunc) (<-chan WatchResult, error) {
	if replace == nil {
		replace = p.Replace
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	// Editors often replace files instead of writing in place, so watch the directory.
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	results := make(chan WatchResult, 4)

	go func() {
		defer close(results)
		defer w.Close()

		var timer *time.Timer
		var fire <-chan time.Time

		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return

			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(debounce)
				} else {
					timer.Reset(debounce)
				}
				fire = timer.C

			case <-fire:
				fire = nil
				log.Printf("[INGEST] %s changed, re-ingesting", abs)
				n, err := replace(ctx, abs)
				if err != nil {
					log.Printf("[INGEST] Re-ingest failed: %v", err)
				}
				select {
				case results <- WatchResult{Path: abs, Chunks: n, Err: err}:
				case <-ctx.Done():
					return
				}

			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Printf("[INGEST] Watcher error: %v", err)
			}
		}
	}()

	return results, nil
}
