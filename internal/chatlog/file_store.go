package chatlog

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/realty-lead-agent/pkg/logging"
)

// FileStore appends entries as JSON lines to a single file.
type FileStore struct {
	path   string
	mu     sync.Mutex
	now    func() time.Time
	logger *logging.Logger
}

// NewFileStore creates a store writing to path. The file is created on the
// first append.
func NewFileStore(path string, logger *logging.Logger) *FileStore {
	if path == "" {
		panic("chatlog: log path cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FileStore{path: path, now: time.Now, logger: logger}
}

// Path returns the log file location.
func (s *FileStore) Path() string {
	return s.path
}

// Append writes one entry, filling id and timestamps when unset.
func (s *FileStore) Append(_ context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now()
	}
	if e.FormattedTime == "" {
		e.FormattedTime = e.Timestamp.Format(formattedTimeLayout)
	}

	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("chatlog: marshal entry: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("chatlog: open log: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("chatlog: append entry: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("chatlog: close log: %w", err)
	}
	return nil
}

// All reads every entry in append order. Unparseable lines are skipped.
func (s *FileStore) All(_ context.Context) ([]Entry, error) {
	s.mu.Lock()
	data, err := os.ReadFile(s.path)
	s.mu.Unlock()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("chatlog: read log: %w", err)
	}

	var out []Entry
	skipped := 0
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 8<<20)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			skipped++
			continue
		}
		out = append(out, e)
	}
	if err := scanner.Err(); err != nil {
		return out, fmt.Errorf("chatlog: scan log: %w", err)
	}
	if skipped > 0 {
		s.logger.Warn("chatlog: skipped unreadable log lines", "skipped", skipped, "path", s.path)
	}
	return out, nil
}

// Session returns the entries of one session.
func (s *FileStore) Session(ctx context.Context, sessionID string) ([]Entry, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, e := range all {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	return out, nil
}

// Recent returns up to n entries, newest first.
func (s *FileStore) Recent(ctx context.Context, n int) ([]Entry, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	return Newest(all, n), nil
}

// Sessions summarizes every session in the log.
func (s *FileStore) Sessions(ctx context.Context) ([]SessionSummary, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	return Summarize(all), nil
}

// Analytics computes aggregate counts over the log.
func (s *FileStore) Analytics(ctx context.Context) (Analytics, error) {
	all, err := s.All(ctx)
	if err != nil {
		return Analytics{}, err
	}
	return Compute(all), nil
}

// ExportCSV writes the whole log as CSV and returns the number of entries.
func (s *FileStore) ExportCSV(ctx context.Context, w io.Writer) (int, error) {
	all, err := s.All(ctx)
	if err != nil {
		return 0, err
	}
	if err := WriteCSV(w, all); err != nil {
		return 0, err
	}
	return len(all), nil
}
