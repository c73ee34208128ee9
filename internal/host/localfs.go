package host

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalFileOps implements FileOps against the local filesystem, the
// agent the standalone CLI runs on.
type LocalFileOps struct{}

var _ FileOps = LocalFileOps{}

// ListRecursive walks root and returns every entry under it, the root
// directory entry included, in lexical walk order.
func (LocalFileOps) ListRecursive(
	ctx context.Context,
	root string,
) ([]FileEntry, error) {
	var entries []FileEntry

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		entry := FileEntry{Path: path, Dir: d.IsDir()}
		if !d.IsDir() {
			info, err := d.Info()
			if err != nil {
				return fmt.Errorf("stat %s: %w", path, err)
			}
			entry.Size = info.Size()
		}

		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", root, err)
	}

	return entries, nil
}

// Open opens a local file for reading.
func (LocalFileOps) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return f, nil
}
