package ledger

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileIDStore keeps the identifier set in a newline-separated text file.
// Saves go through a temp file in the same directory followed by a rename,
// so a crash leaves either the old or the new set on disk.
type FileIDStore struct {
	Path string
}

// LoadIDs reads the file. A missing file is an empty set.
func (f FileIDStore) LoadIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := os.Open(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Path, err)
	}
	defer file.Close()

	ids := []string{}
	sc := bufio.NewScanner(file)
	for sc.Scan() {
		if id := strings.TrimSpace(sc.Text()); id != "" {
			ids = append(ids, id)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Path, err)
	}
	return ids, nil
}

// SaveIDs rewrites the file with ids, one per line.
func (f FileIDStore) SaveIDs(ctx context.Context, ids []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(f.Path)
	tmp, err := os.CreateTemp(dir, ".ids-*")
	if err != nil {
		return fmt.Errorf("create temp in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()

	bw := bufio.NewWriter(tmp)
	for _, id := range ids {
		bw.WriteString(id)
		bw.WriteByte('\n')
	}
	if err := bw.Flush(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("sync %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, f.Path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace %s: %w", f.Path, err)
	}
	syncDir(dir)
	return nil
}

// syncDir fsyncs the parent directory so the rename itself is durable.
// Best effort: some filesystems reject directory fsync.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	defer d.Close()
	_ = d.Sync()
}
