package mail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Spool is a Source over a directory of RFC 5322 message files, as
// written by a fetchmail/procmail style delivery agent. Files whose name
// starts with "." are ignored while they are still being written.
type Spool struct {
	Dir    string
	Logger *slog.Logger
}

// OpenSpool checks that dir is a readable directory.
func OpenSpool(dir string, logger *slog.Logger) (*Spool, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("mail spool: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("mail spool: %s is not a directory", dir)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Spool{Dir: dir, Logger: logger}, nil
}

// List parses every message file and returns them newest first.
// A file that cannot be parsed is logged and left out.
func (s *Spool) List(ctx context.Context) ([]Message, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("read spool %s: %w", s.Dir, err)
	}

	msgs := make([]Message, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		msg, err := s.load(e)
		if err != nil {
			s.logger().Warn("skipping spool file", "file", e.Name(), "error", err)
			continue
		}
		msgs = append(msgs, msg)
	}
	SortNewestFirst(msgs)
	return msgs, nil
}

func (s *Spool) load(e os.DirEntry) (Message, error) {
	path := filepath.Join(s.Dir, e.Name())
	f, err := os.Open(path)
	if err != nil {
		return Message{}, err
	}
	defer f.Close()

	info, err := e.Info()
	if err != nil {
		return Message{}, err
	}
	msg, err := Parse(f, e.Name(), info.ModTime())
	if errors.Is(err, io.EOF) {
		return Message{}, fmt.Errorf("empty message file")
	}
	return msg, err
}

func (s *Spool) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
