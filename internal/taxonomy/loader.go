package taxonomy

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/lumenkind/recall/internal/logging"
)

// Load reads a taxonomy override file. An empty path or a missing file yields
// the built-in default; a present but invalid file is an error so a typo never
// silently reroutes every query.
func Load(path string) (*Taxonomy, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read taxonomy %q: %w", path, err)
	}
	var t Taxonomy
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse taxonomy %q: %w", path, err)
	}
	def := Default()
	normalize(&t)
	if t.Related == nil {
		// Inherit default adjacency, restricted to categories the file defines.
		present := make(map[string]bool, len(t.Categories))
		for _, c := range t.Categories {
			present[c.ID] = true
		}
		t.Related = make(map[string][]string)
		for id, related := range def.Related {
			if !present[id] {
				continue
			}
			for _, r := range related {
				if present[r] {
					t.Related[id] = append(t.Related[id], r)
				}
			}
		}
	}
	if t.Alignment == nil {
		t.Alignment = def.Alignment
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("taxonomy %q: %w", path, err)
	}
	t.index()
	return &t, nil
}

// normalize lower-cases and de-blanks every matching term so extraction can
// compare against normalized query text.
func normalize(t *Taxonomy) {
	for i := range t.Categories {
		c := &t.Categories[i]
		c.ID = strings.TrimSpace(c.ID)
		c.Keywords = cleanTerms(c.Keywords)
		c.Patterns = cleanTerms(c.Patterns)
		for j := range c.Subcategories {
			c.Subcategories[j].Terms = cleanTerms(c.Subcategories[j].Terms)
		}
	}
}

func cleanTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term != "" {
			out = append(out, term)
		}
	}
	return out
}

// Watch reloads the taxonomy file on change and hands the result to onReload.
// It returns after installing the watcher; the watch loop stops when ctx is
// done. Reload failures are logged and the previous taxonomy stays active.
func Watch(ctx context.Context, path string, log logging.Logger, onReload func(*Taxonomy)) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("taxonomy watcher: %w", err)
	}
	// Watch the directory: editors replace files on save, which drops
	// single-file watches.
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %q: %w", dir, err)
	}
	target := filepath.Clean(path)

	go func() {
		defer watcher.Close()
		var timer *time.Timer
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				// Debounce bursts of write events from a single save.
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(200*time.Millisecond, func() {
					t, err := Load(path)
					if err != nil {
						log.Warn("taxonomy reload failed, keeping previous", "path", path, "error", err)
						return
					}
					log.Info("taxonomy reloaded", "path", path, "categories", len(t.Categories))
					onReload(t)
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn("taxonomy watcher error", "error", err)
			}
		}
	}()
	return nil
}
