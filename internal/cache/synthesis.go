package cache

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// SynthesisCache maps preprocessed text to a synthesized audio file. An
// entry whose file has gone missing is treated as a miss and dropped.
type SynthesisCache struct {
	memo *Memo[string]

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewSynthesisCache creates an empty SynthesisCache.
func NewSynthesisCache() *SynthesisCache {
	return &SynthesisCache{memo: NewMemo[string]()}
}

// Get returns the artifact path for text if the file still exists.
func (c *SynthesisCache) Get(text string) (string, bool) {
	path, ok := c.memo.Get(text)
	if !ok {
		return "", false
	}
	if _, err := os.Stat(path); err != nil {
		log.Printf("[cache] artifact gone, evicting path=%s: %v", path, err)
		c.memo.Delete(text)
		return "", false
	}
	return path, true
}

// Put records the artifact path for text.
func (c *SynthesisCache) Put(text, path string) {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	c.memo.Put(text, path)
}

// Len returns the number of entries.
func (c *SynthesisCache) Len() int {
	return c.memo.Len()
}

// Reset removes every entry.
func (c *SynthesisCache) Reset() {
	c.memo.Reset()
}

// Watch evicts entries as soon as their artifact is removed or renamed in
// dir. Get still checks the file, so Watch only makes eviction prompt.
// Calling Watch again replaces the previous watch.
func (c *SynthesisCache) Watch(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve media dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(abs); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", abs, err)
	}

	c.Close()

	c.mu.Lock()
	c.watcher = watcher
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	c.wg.Add(1)
	go c.watchArtifacts(watcher, done)
	return nil
}

// watchArtifacts drops entries for files that leave the media directory.
func (c *SynthesisCache) watchArtifacts(watcher *fsnotify.Watcher, done chan struct{}) {
	defer c.wg.Done()
	for {
		select {
		case <-done:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			gone := filepath.Clean(event.Name)
			if n := c.memo.deleteIf(func(path string) bool { return path == gone }); n > 0 {
				log.Printf("[cache] evicted %d entries for removed artifact %s", n, gone)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[cache] watcher error: %v", err)
		}
	}
}

// Close stops any active watch.
func (c *SynthesisCache) Close() {
	c.mu.Lock()
	watcher, done := c.watcher, c.done
	c.watcher, c.done = nil, nil
	c.mu.Unlock()

	if watcher == nil {
		return
	}
	close(done)
	watcher.Close()
	c.wg.Wait()
}
