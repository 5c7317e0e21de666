// Package archive keeps the most recent handshake trace of every probed host
// on disk, indexed by a JSON metadata file. An archive lives only as long as
// the process: Open discards whatever an earlier run left behind and Close
// removes everything stored since.
package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/daniellavrushin/pqc-tracer/log"
	"github.com/daniellavrushin/pqc-tracer/stderrcap"
	"github.com/google/uuid"
)

const (
	metadataName = "traces.json"
	traceExt     = ".trace"
)

var ErrNotFound = errors.New("archive: trace not found")

type Archive struct {
	mu           sync.RWMutex
	metadata     map[string]*TraceMetadata
	outputPath   string
	metadataFile string
}

type TraceMetadata struct {
	ProbeID   string    `json:"probe_id"`
	Group     string    `json:"group"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	Size      int       `json:"size"`
	Filepath  string    `json:"filepath"`
}

// Trace is the API view of one archived entry. Text is only filled by Get.
type Trace struct {
	Host string `json:"host"`
	TraceMetadata
	Text string `json:"text,omitempty"`
}

// Open creates dir if needed and starts from an empty index.
func Open(dir string) (*Archive, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, log.Errorf("failed to create trace archive %s: %v", dir, err)
	}
	a := &Archive{
		metadata:     make(map[string]*TraceMetadata),
		outputPath:   dir,
		metadataFile: filepath.Join(dir, metadataName),
	}
	a.purgeStale()
	return a, nil
}

func (a *Archive) Dir() string {
	return a.outputPath
}

// purgeStale removes the index and trace files of a previous run.
func (a *Archive) purgeStale() {
	os.Remove(a.metadataFile)
	stale, err := filepath.Glob(filepath.Join(a.outputPath, "*"+traceExt))
	if err != nil {
		return
	}
	for _, f := range stale {
		if err := os.Remove(f); err != nil {
			log.Warnf("Failed to remove stale trace %s: %v", f, err)
		}
	}
	if len(stale) > 0 {
		log.Tracef("Discarded %d traces from a previous run", len(stale))
	}
}

// saveMetadata writes the index atomically; callers hold mu.
func (a *Archive) saveMetadata() error {
	data, err := json.MarshalIndent(a.metadata, "", "  ")
	if err != nil {
		return err
	}
	tmp := a.metadataFile + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return log.Errorf("failed to write trace index: %v", err)
	}
	if err := os.Rename(tmp, a.metadataFile); err != nil {
		return log.Errorf("failed to replace trace index: %v", err)
	}
	return nil
}

// Store replaces the archived trace of host. Empty traces are ignored.
func (a *Archive) Store(host, probeID, group, source string, text stderrcap.TraceText) error {
	if host == "" || text == "" {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	filename := traceFile(host)
	if err := os.WriteFile(filepath.Join(a.outputPath, filename), []byte(text), 0o644); err != nil {
		return log.Errorf("failed to save trace for %s: %v", host, err)
	}

	a.metadata[host] = &TraceMetadata{
		ProbeID:   probeID,
		Group:     group,
		Source:    source,
		Timestamp: time.Now(),
		Size:      len(text),
		Filepath:  filename,
	}
	if err := a.saveMetadata(); err != nil {
		return err
	}

	log.Tracef("Archived %d bytes of trace for %s", len(text), host)
	return nil
}

// List returns every entry ordered by host, without trace text.
func (a *Archive) List() []*Trace {
	a.mu.RLock()
	defer a.mu.RUnlock()

	traces := make([]*Trace, 0, len(a.metadata))
	for host, meta := range a.metadata {
		traces = append(traces, &Trace{Host: host, TraceMetadata: *meta})
	}
	sort.Slice(traces, func(i, j int) bool { return traces[i].Host < traces[j].Host })
	return traces
}

// Get returns the entry for host with its text read from disk.
func (a *Archive) Get(host string) (*Trace, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	meta, ok := a.metadata[host]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, host)
	}
	data, err := os.ReadFile(filepath.Join(a.outputPath, meta.Filepath))
	if err != nil {
		return nil, fmt.Errorf("failed to read trace for %s: %w", host, err)
	}
	return &Trace{Host: host, TraceMetadata: *meta, Text: string(data)}, nil
}

func (a *Archive) Delete(host string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	meta, ok := a.metadata[host]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, host)
	}
	os.Remove(filepath.Join(a.outputPath, meta.Filepath))
	delete(a.metadata, host)

	if err := a.saveMetadata(); err != nil {
		return err
	}
	log.Infof("Deleted archived trace for %s", host)
	return nil
}

// Close removes every trace and the index. The archive stays usable.
func (a *Archive) Close() error {
	if err := a.ClearAll(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := os.Remove(a.metadataFile); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ClearAll removes every archived trace.
func (a *Archive) ClearAll() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, meta := range a.metadata {
		os.Remove(filepath.Join(a.outputPath, meta.Filepath))
	}
	a.metadata = make(map[string]*TraceMetadata)

	if err := a.saveMetadata(); err != nil {
		return err
	}
	log.Infof("Cleared all archived traces")
	return nil
}

// traceFile names the file of host: a readable prefix plus a name-based
// uuid, since distinct hosts can sanitize to the same prefix.
func traceFile(host string) string {
	return sanitizeHost(host) + "-" + uuid.NewSHA1(uuid.NameSpaceDNS, []byte(host)).String() + traceExt
}

// sanitizeHost maps a host onto a file name: dots become underscores, IPv6
// colons become dashes, anything else outside [A-Za-z0-9-] is dropped.
func sanitizeHost(host string) string {
	var b strings.Builder
	for _, ch := range host {
		switch {
		case (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') || ch == '-':
			b.WriteRune(ch)
		case ch == '.':
			b.WriteByte('_')
		case ch == ':':
			b.WriteByte('-')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}
