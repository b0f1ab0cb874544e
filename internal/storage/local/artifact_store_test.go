package local

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pricescout/pricescout/internal/scout"
)

func testArtifact() scout.Artifact {
	return scout.Artifact{
		Website:       "testmart",
		Location:      "Koramangala",
		Product:       "milk",
		Timestamp:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		TotalProducts: 1,
		Products:      []scout.Product{{Name: "Amul Milk"}},
	}
}

func TestNewRequiresBaseDir(t *testing.T) {
	t.Parallel()

	_, err := New(Config{BaseDir: " "})
	require.Error(t, err)
}

func TestNewCreatesMissingDir(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "artifacts")
	_, err := New(Config{BaseDir: dir})
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestPutArtifact(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := New(Config{BaseDir: dir})
	require.NoError(t, err)

	uri, err := store.PutArtifact(context.Background(), "results/job-1/testmart.json", testArtifact())
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(uri, "file://"))

	payload, err := os.ReadFile(filepath.Join(dir, "results", "job-1", "testmart.json"))
	require.NoError(t, err)

	var got scout.Artifact
	require.NoError(t, json.Unmarshal(payload, &got))
	require.Equal(t, "testmart", got.Website)
	require.Equal(t, 1, got.TotalProducts)
	require.Equal(t, "Amul Milk", got.Products[0].Name)
}

func TestPutArtifactRejectsTraversal(t *testing.T) {
	t.Parallel()

	store, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	_, err = store.PutArtifact(context.Background(), "../outside.json", testArtifact())
	require.Error(t, err)
}

func TestPutArtifactRequiresPath(t *testing.T) {
	t.Parallel()

	store, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	_, err = store.PutArtifact(context.Background(), "  ", testArtifact())
	require.Error(t, err)
}

func TestPutArtifactCanceledContext(t *testing.T) {
	t.Parallel()

	store, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.PutArtifact(ctx, "a.json", testArtifact())
	require.Error(t, err)
}
