package host

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ArtifactRegistry records committed artifacts. The sqlite store
// implements it; a nil registry skips recording.
type ArtifactRegistry interface {
	RecordArtifact(ctx context.Context, spec ArtifactSpec, fileCount int) error
}

// ZipArtifactFactory builds artifacts as zip bundles under a local
// artifact root, laid out as root/application/release/build/name.zip.
type ZipArtifactFactory struct {
	// Root is the directory artifacts are written under.
	Root string

	// Registry, when set, records each committed artifact.
	Registry ArtifactRegistry
}

var _ ArtifactFactory = (*ZipArtifactFactory)(nil)

// Open starts a new artifact. The bundle is written to a temporary file
// and only moved into place on Commit, so an aborted or failed import
// never leaves a partial artifact behind.
func (f *ZipArtifactFactory) Open(
	ctx context.Context,
	spec ArtifactSpec,
) (ArtifactBuilder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir := filepath.Join(f.Root, spec.Application, spec.Release, spec.Build)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating artifact directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+spec.Name+".*.partial")
	if err != nil {
		return nil, fmt.Errorf("creating artifact scratch file: %w", err)
	}

	return &zipBuilder{
		factory: f,
		spec:    spec,
		final:   filepath.Join(dir, spec.Name+".zip"),
		tmp:     tmp,
		zw:      zip.NewWriter(tmp),
	}, nil
}

// zipBuilder implements ArtifactBuilder over one zip file.
type zipBuilder struct {
	factory *ZipArtifactFactory
	spec    ArtifactSpec
	final   string
	tmp     *os.File
	zw      *zip.Writer
	count   int
}

// Add streams one file into the bundle under relPath.
func (b *zipBuilder) Add(ctx context.Context, relPath string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Zip entry names always use forward slashes.
	name := strings.ReplaceAll(relPath, `\`, "/")
	name = strings.TrimLeft(name, "/")

	w, err := b.zw.Create(name)
	if err != nil {
		return fmt.Errorf("adding %s to artifact: %w", relPath, err)
	}

	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("writing %s into artifact: %w", relPath, err)
	}

	b.count++
	return nil
}

// Commit finalizes the zip and moves it into place, then records the
// artifact in the registry when one is configured.
func (b *zipBuilder) Commit(ctx context.Context) error {
	if err := b.zw.Close(); err != nil {
		b.tmp.Close()
		os.Remove(b.tmp.Name())
		return fmt.Errorf("finalizing artifact %s: %w", b.spec.Name, err)
	}
	if err := b.tmp.Close(); err != nil {
		os.Remove(b.tmp.Name())
		return fmt.Errorf("closing artifact %s: %w", b.spec.Name, err)
	}

	if err := os.Rename(b.tmp.Name(), b.final); err != nil {
		os.Remove(b.tmp.Name())
		return fmt.Errorf("publishing artifact %s: %w", b.spec.Name, err)
	}

	if b.factory.Registry != nil {
		err := b.factory.Registry.RecordArtifact(ctx, b.spec, b.count)
		if err != nil {
			return fmt.Errorf("recording artifact %s: %w", b.spec.Name, err)
		}
	}

	return nil
}

// Abort discards the scratch file.
func (b *zipBuilder) Abort() error {
	b.zw.Close()
	b.tmp.Close()
	if err := os.Remove(b.tmp.Name()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing artifact scratch file: %w", err)
	}
	return nil
}
