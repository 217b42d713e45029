// Package ingest accepts interaction events dropped as JSON files into a
// watched directory, for producers that can't reach the API (shell scripts,
// cron jobs, other local processes). Each file becomes one event; the
// filename doubles as the dedupe key, so re-dropping a file is a no-op.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/scrypster/animus/internal/storage"
	"github.com/scrypster/animus/pkg/types"
)

// FileEvent is the JSON payload of a dropped event file.
type FileEvent struct {
	AnimaID    string     `json:"anima_id"`
	EventType  string     `json:"event_type,omitempty"`
	Role       string     `json:"role,omitempty"`
	Author     string     `json:"author,omitempty"`
	Summary    string     `json:"summary,omitempty"`
	Content    string     `json:"content"`
	OccurredAt *time.Time `json:"occurred_at,omitempty"`
	SessionID  string     `json:"session_id,omitempty"`
}

// Watcher watches {dataPath}/inbox/ and ingests dropped .event files.
type Watcher struct {
	dir     string
	events  storage.EventStore
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher creates a watcher ingesting into the given event store.
func NewWatcher(dataPath string, events storage.EventStore) *Watcher {
	return &Watcher{
		dir:    filepath.Join(dataPath, "inbox"),
		events: events,
		done:   make(chan struct{}),
	}
}

// Start begins watching. Existing files are drained first, then new ones
// are ingested as they appear. Call Stop to clean up.
func (w *Watcher) Start() error {
	if err := os.MkdirAll(w.dir, 0o700); err != nil {
		return err
	}

	w.drainExisting()

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(w.dir); err != nil {
		_ = fw.Close()
		return err
	}
	w.watcher = fw

	go w.loop()
	log.Printf("ingest: watching %s for event files", w.dir)
	return nil
}

// Stop shuts down the watcher.
func (w *Watcher) Stop() {
	if w.watcher != nil {
		_ = w.watcher.Close()
	}
	<-w.done
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case evt, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if evt.Op&fsnotify.Create != 0 && strings.HasSuffix(evt.Name, ".event") {
				w.processFile(evt.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("ingest: watcher error: %v", err)
		}
	}
}

func (w *Watcher) drainExisting() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".event") {
			w.processFile(filepath.Join(w.dir, entry.Name()))
		}
	}
}

func (w *Watcher) processFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return // file already consumed by another process
	}

	if err := w.ingest(filepath.Base(path), data); err != nil {
		log.Printf("ingest: failed to ingest %s: %v", filepath.Base(path), err)
		return
	}
	_ = os.Remove(path)
}

// ingest parses and stores one event file. The filename is the dedupe key:
// a crashed run that already stored the event but not yet removed the file
// resolves to ErrDuplicateEvent on replay, which counts as success.
func (w *Watcher) ingest(filename string, data []byte) error {
	var fe FileEvent
	if err := json.Unmarshal(data, &fe); err != nil {
		return fmt.Errorf("invalid event file: %w", err)
	}
	if fe.AnimaID == "" || fe.Content == "" {
		return fmt.Errorf("event file missing anima_id or content")
	}

	event := &types.Event{
		AnimaID:    fe.AnimaID,
		EventType:  fe.EventType,
		Role:       fe.Role,
		Author:     fe.Author,
		Summary:    fe.Summary,
		Content:    fe.Content,
		OccurredAt: fe.OccurredAt,
		SessionID:  fe.SessionID,
		DedupeKey:  "file:" + filename,
	}
	err := w.events.CreateEvent(context.Background(), event)
	if errors.Is(err, storage.ErrDuplicateEvent) {
		log.Printf("ingest: %s already ingested, skipping", filename)
		return nil
	}
	return err
}

// Writer drops event files into the inbox for a Watcher to pick up. It is
// the producer-side counterpart used by tools sharing the data directory.
type Writer struct {
	dir string
}

// NewWriter creates a writer that emits events to {dataPath}/inbox/.
func NewWriter(dataPath string) *Writer {
	return &Writer{dir: filepath.Join(dataPath, "inbox")}
}

// Write drops one event file. Safe to call concurrently.
func (w *Writer) Write(fe FileEvent) error {
	if err := os.MkdirAll(w.dir, 0o700); err != nil {
		return fmt.Errorf("ingest: mkdir %s: %w", w.dir, err)
	}
	data, err := json.Marshal(fe)
	if err != nil {
		return fmt.Errorf("ingest: marshal event: %w", err)
	}
	filename := fmt.Sprintf("%d-%s.event", time.Now().UnixNano(), sanitizeID(fe.AnimaID))
	return os.WriteFile(filepath.Join(w.dir, filename), data, 0o600)
}

// sanitizeID replaces characters unsafe for filenames.
func sanitizeID(id string) string {
	out := make([]byte, len(id))
	for i := 0; i < len(id); i++ {
		if id[i] == '/' || id[i] == ':' {
			out[i] = '_'
		} else {
			out[i] = id[i]
		}
	}
	return string(out)
}
