package host

import (
	"archive/zip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRegistry records artifact commits.
type fakeRegistry struct {
	spec      ArtifactSpec
	fileCount int
	calls     int
	err       error
}

func (f *fakeRegistry) RecordArtifact(ctx context.Context, spec ArtifactSpec, fileCount int) error {
	f.calls++
	f.spec = spec
	f.fileCount = fileCount
	return f.err
}

func testSpec() ArtifactSpec {
	return ArtifactSpec{
		Application: "BillingApp", Release: "4.2", Build: "17",
		Deployable: "web", Name: "drop",
	}
}

func TestZipArtifactCommit(t *testing.T) {
	root := t.TempDir()
	registry := &fakeRegistry{}
	factory := &ZipArtifactFactory{Root: root, Registry: registry}

	builder, err := factory.Open(t.Context(), testSpec())
	require.NoError(t, err)

	require.NoError(t, builder.Add(t.Context(), `bin\app.exe`, strings.NewReader("exe")))
	require.NoError(t, builder.Add(t.Context(), "readme.txt", strings.NewReader("hello")))
	require.NoError(t, builder.Commit(t.Context()))

	final := filepath.Join(root, "BillingApp", "4.2", "17", "drop.zip")
	zr, err := zip.OpenReader(final)
	require.NoError(t, err)
	defer zr.Close()

	got := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		got[f.Name] = string(data)
	}

	// Backslash entry names are normalized to forward slashes.
	assert.Equal(t, map[string]string{
		"bin/app.exe": "exe",
		"readme.txt":  "hello",
	}, got)

	assert.Equal(t, 1, registry.calls)
	assert.Equal(t, testSpec(), registry.spec)
	assert.Equal(t, 2, registry.fileCount)

	// No scratch files left behind.
	assert.Empty(t, scratchFiles(t, filepath.Dir(final)))
}

func TestZipArtifactAbort(t *testing.T) {
	root := t.TempDir()
	registry := &fakeRegistry{}
	factory := &ZipArtifactFactory{Root: root, Registry: registry}

	builder, err := factory.Open(t.Context(), testSpec())
	require.NoError(t, err)

	require.NoError(t, builder.Add(t.Context(), "a.txt", strings.NewReader("a")))
	require.NoError(t, builder.Abort())

	dir := filepath.Join(root, "BillingApp", "4.2", "17")
	assert.NoFileExists(t, filepath.Join(dir, "drop.zip"))
	assert.Empty(t, scratchFiles(t, dir))
	assert.Zero(t, registry.calls)
}

func TestZipArtifactNilRegistry(t *testing.T) {
	root := t.TempDir()
	factory := &ZipArtifactFactory{Root: root}

	builder, err := factory.Open(t.Context(), testSpec())
	require.NoError(t, err)
	require.NoError(t, builder.Commit(t.Context()))

	assert.FileExists(t,
		filepath.Join(root, "BillingApp", "4.2", "17", "drop.zip"))
}

func TestZipArtifactRegistryFailureSurfaces(t *testing.T) {
	root := t.TempDir()
	registry := &fakeRegistry{err: errors.New("db locked")}
	factory := &ZipArtifactFactory{Root: root, Registry: registry}

	builder, err := factory.Open(t.Context(), testSpec())
	require.NoError(t, err)

	err = builder.Commit(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db locked")
}

func scratchFiles(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)

	var scratch []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".partial") {
			scratch = append(scratch, e.Name())
		}
	}
	return scratch
}
