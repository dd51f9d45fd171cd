// Package audit keeps a segmented JSONL trail of lifecycle events and
// exposes the on/off/status/export operations the CLI surfaces.
package audit

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultSegmentBytes caps a trail segment before rotation.
	DefaultSegmentBytes int64 = 5 * 1024 * 1024

	stateFile     = "audit.state"
	segmentPrefix = "audit-"
	segmentSuffix = ".jsonl"
)

// ErrClosed indicates the trail has already been closed.
var ErrClosed = errors.New("audit: closed")

// Entry is one recorded lifecycle event.
type Entry struct {
	ID        string    `json:"id"`
	Event     string    `json:"event"`
	SessionID string    `json:"session_id,omitempty"`
	ProjectID string    `json:"project_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

type config struct {
	segmentBytes int64
	fileMode     os.FileMode
}

// Option configures a Trail.
type Option func(*config)

// WithSegmentBytes overrides the default segment size limit.
func WithSegmentBytes(n int64) Option {
	return func(cfg *config) {
		if n > 0 {
			cfg.segmentBytes = n
		}
	}
}

// WithFileMode sets the permission bits applied to new segments.
func WithFileMode(mode os.FileMode) Option {
	return func(cfg *config) {
		cfg.fileMode = mode
	}
}

// Trail is a size-rotated JSONL event log with a persisted enabled flag.
// Recording while disabled is a silent no-op, so callers can leave the
// recorder wired and flip the flag at runtime.
type Trail struct {
	dir string
	cfg config

	mu      sync.Mutex
	file    *os.File
	writer  *bufio.Writer
	size    int64
	nextIdx int
	enabled bool
	closed  bool
}

// Open initializes a trail rooted at dir, creating it if needed. The enabled
// flag persists across opens via a state file.
func Open(dir string, opts ...Option) (*Trail, error) {
	cfg := config{
		segmentBytes: DefaultSegmentBytes,
		fileMode:     0o600,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("audit: mkdir %s: %w", dir, err)
	}

	t := &Trail{dir: dir, cfg: cfg}
	if err := t.loadState(); err != nil {
		return nil, err
	}
	if err := t.scanSegments(); err != nil {
		return nil, err
	}
	return t, nil
}

// Enabled reports whether recording is on.
func (t *Trail) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

// Enable turns recording on and persists the flag.
func (t *Trail) Enable() error {
	return t.setEnabled(true)
}

// Disable turns recording off and persists the flag.
func (t *Trail) Disable() error {
	return t.setEnabled(false)
}

func (t *Trail) setEnabled(on bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	t.enabled = on
	return t.saveStateLocked()
}

// Record appends one entry. Disabled trails drop the entry without error.
func (t *Trail) Record(entry Entry) error {
	if strings.TrimSpace(entry.Event) == "" {
		return errors.New("audit: entry event required")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	if !t.enabled {
		return nil
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("audit: encode entry: %w", err)
	}
	raw = append(raw, '\n')

	if err := t.rollLocked(int64(len(raw))); err != nil {
		return err
	}
	if _, err := t.writer.Write(raw); err != nil {
		return err
	}
	if err := t.writer.Flush(); err != nil {
		return err
	}
	t.size += int64(len(raw))
	return nil
}

// Status summarizes the trail for the CLI.
type Status struct {
	Enabled  bool   `json:"enabled"`
	Dir      string `json:"dir"`
	Segments int    `json:"segments"`
	Entries  int    `json:"entries"`
	Bytes    int64  `json:"bytes"`
}

// Status walks the segments and reports totals.
func (t *Trail) Status() (Status, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return Status{}, ErrClosed
	}
	if err := t.flushLocked(); err != nil {
		return Status{}, err
	}

	st := Status{Enabled: t.enabled, Dir: t.dir}
	segments, err := t.segmentPaths()
	if err != nil {
		return Status{}, err
	}
	st.Segments = len(segments)
	for _, path := range segments {
		info, err := os.Stat(path)
		if err != nil {
			return Status{}, err
		}
		st.Bytes += info.Size()
		n, err := countLines(path)
		if err != nil {
			return Status{}, err
		}
		st.Entries += n
	}
	return st, nil
}

// Export streams every entry in recorded order as JSONL to w.
func (t *Trail) Export(w io.Writer) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	if err := t.flushLocked(); err != nil {
		return err
	}

	segments, err := t.segmentPaths()
	if err != nil {
		return err
	}
	for _, path := range segments {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		_, err = io.Copy(w, f)
		f.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// Replay iterates every recorded entry in order.
func (t *Trail) Replay(apply func(Entry) error) error {
	if apply == nil {
		return errors.New("audit: replay callback required")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.flushLocked(); err != nil {
		return err
	}

	segments, err := t.segmentPaths()
	if err != nil {
		return err
	}
	for _, path := range segments {
		if err := replaySegment(path, apply); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes and releases the active segment.
func (t *Trail) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if t.writer != nil {
		if err := t.writer.Flush(); err != nil {
			return err
		}
	}
	if t.file != nil {
		return t.file.Close()
	}
	return nil
}

func (t *Trail) flushLocked() error {
	if t.writer != nil {
		return t.writer.Flush()
	}
	return nil
}

// rollLocked opens the active segment, rotating when the incoming write would
// exceed the size cap.
func (t *Trail) rollLocked(incoming int64) error {
	if t.file != nil && t.size+incoming <= t.cfg.segmentBytes {
		return nil
	}
	if t.file != nil {
		if err := t.writer.Flush(); err != nil {
			return err
		}
		if err := t.file.Close(); err != nil {
			return err
		}
		t.file = nil
		t.nextIdx++
	}

	path := filepath.Join(t.dir, fmt.Sprintf("%s%06d%s", segmentPrefix, t.nextIdx, segmentSuffix))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, t.cfg.fileMode)
	if err != nil {
		return fmt.Errorf("audit: open segment: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	t.file = f
	t.writer = bufio.NewWriter(f)
	t.size = info.Size()
	return nil
}

func (t *Trail) scanSegments() error {
	segments, err := t.segmentPaths()
	if err != nil {
		return err
	}
	if len(segments) == 0 {
		t.nextIdx = 0
		return nil
	}
	last := segments[len(segments)-1]
	idx, err := segmentIndex(last)
	if err != nil {
		return err
	}
	t.nextIdx = idx
	return nil
}

func (t *Trail) segmentPaths() ([]string, error) {
	pattern := filepath.Join(t.dir, segmentPrefix+"*"+segmentSuffix)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

func (t *Trail) loadState() error {
	raw, err := os.ReadFile(filepath.Join(t.dir, stateFile))
	if err != nil {
		if os.IsNotExist(err) {
			t.enabled = false
			return nil
		}
		return err
	}
	t.enabled = strings.TrimSpace(string(raw)) == "on"
	return nil
}

func (t *Trail) saveStateLocked() error {
	state := "off"
	if t.enabled {
		state = "on"
	}
	return os.WriteFile(filepath.Join(t.dir, stateFile), []byte(state+"\n"), t.cfg.fileMode)
}

func segmentIndex(path string) (int, error) {
	name := filepath.Base(path)
	name = strings.TrimPrefix(name, segmentPrefix)
	name = strings.TrimSuffix(name, segmentSuffix)
	var idx int
	if _, err := fmt.Sscanf(name, "%d", &idx); err != nil {
		return 0, fmt.Errorf("audit: bad segment name %s: %w", path, err)
	}
	return idx, nil
}

func replaySegment(path string, apply func(Entry) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry Entry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return fmt.Errorf("audit: decode entry in %s: %w", path, err)
		}
		if err := apply(entry); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) != "" {
			n++
		}
	}
	return n, scanner.Err()
}
