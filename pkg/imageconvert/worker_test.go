package imageconvert

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ggnet/ggnetd/pkg/models"
	"github.com/ggnet/ggnetd/pkg/store"
)

func TestParseProgress(t *testing.T) {
	cases := []struct {
		line string
		pct  int
		ok   bool
	}{
		{"    (42.13/100%)", 42, true},
		{"   (100.00/100%)", 100, true},
		{"no percentage here", 0, false},
		{"qemu-img: error while writing", 0, false},
	}
	for _, c := range cases {
		pct, ok := parseProgress(c.line)
		require.Equal(t, c.ok, ok, c.line)
		if ok {
			require.Equal(t, c.pct, pct, c.line)
		}
	}
}

// fakeRunner lets tests control subprocess outcome without shelling out.
type fakeRunner struct {
	progress []int
	err      error
	writeOut bool
}

func (f *fakeRunner) run(ctx context.Context, onProgress func(pct int), name string, args ...string) error {
	for _, p := range f.progress {
		onProgress(p)
	}
	if f.writeOut {
		// last arg is the output path by convention of convertOne's argv.
		out := args[len(args)-1]
		if err := os.WriteFile(out, []byte("fake raw contents"), 0o644); err != nil {
			return err
		}
	}
	return f.err
}

func newTestStore(t *testing.T) *store.GORMStore {
	t.Helper()
	dir := t.TempDir()
	db, err := store.New(&store.Config{Type: store.DatabaseTypeSQLite, SQLite: store.SQLiteConfig{Path: filepath.Join(dir, "test.db")}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedProcessingImage(t *testing.T, db *store.GORMStore, dir string, name string) *models.Image {
	t.Helper()
	srcPath := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(srcPath, []byte("source bytes"), 0o644))

	img := &models.Image{
		DisplayName:       name,
		FileName:          name,
		FilePath:          srcPath,
		OriginalFileName:  name,
		Format:            string(models.ImageFormatVHDX),
		ImageType:         string(models.ImageTypeSystem),
		PhysicalSizeBytes: 12,
		Status:            string(models.ImageStatusProcessing),
	}
	id, err := db.CreateImage(context.Background(), img)
	require.NoError(t, err)
	img.ID = id
	return img
}

func TestWorker_ConvertOne_Success(t *testing.T) {
	dir := t.TempDir()
	db := newTestStore(t)
	img := seedProcessingImage(t, db, dir, "win11.vhdx")

	w := New(Config{BatchSize: 10, RetainSource: false}, db, "worker-1")
	w.runner = &fakeRunner{progress: []int{10, 50, 100}, writeOut: true}

	ctx := context.Background()
	claimed, err := db.ClaimImageForConversion(ctx, "worker-1", 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	w.convertOne(ctx, claimed[0])

	got, err := db.GetImage(ctx, img.ID)
	require.NoError(t, err)
	require.Equal(t, string(models.ImageStatusReady), got.Status)
	require.NotEqual(t, img.FilePath, got.FilePath)
	require.Greater(t, got.VirtualSizeBytes, int64(0))
	require.Contains(t, got.ProcessingLog, "progress 100%")

	_, statErr := os.Stat(img.FilePath)
	require.True(t, os.IsNotExist(statErr), "source should be removed when RetainSource is false")
}

func TestWorker_ConvertOne_RetainsSource(t *testing.T) {
	dir := t.TempDir()
	db := newTestStore(t)
	img := seedProcessingImage(t, db, dir, "keep.vhdx")

	w := New(Config{BatchSize: 10, RetainSource: true}, db, "worker-1")
	w.runner = &fakeRunner{writeOut: true}

	ctx := context.Background()
	claimed, err := db.ClaimImageForConversion(ctx, "worker-1", 10)
	require.NoError(t, err)
	w.convertOne(ctx, claimed[0])

	_, statErr := os.Stat(img.FilePath)
	require.NoError(t, statErr, "source must survive when RetainSource is true")
}

func TestWorker_ConvertOne_Failure(t *testing.T) {
	dir := t.TempDir()
	db := newTestStore(t)
	img := seedProcessingImage(t, db, dir, "broken.vhdx")

	w := New(Config{BatchSize: 10}, db, "worker-1")
	w.runner = &fakeRunner{err: errConversion("tool exited 1")}

	ctx := context.Background()
	claimed, err := db.ClaimImageForConversion(ctx, "worker-1", 10)
	require.NoError(t, err)
	w.convertOne(ctx, claimed[0])

	got, err := db.GetImage(ctx, img.ID)
	require.NoError(t, err)
	require.Equal(t, string(models.ImageStatusError), got.Status)
	require.Contains(t, got.ErrorMessage, "tool exited 1")
}

type errConversion string

func (e errConversion) Error() string { return string(e) }

func TestWorker_RecoverStuck(t *testing.T) {
	dir := t.TempDir()
	db := newTestStore(t)
	seedProcessingImage(t, db, dir, "stuck.vhdx")

	ctx := context.Background()
	claimed, err := db.ClaimImageForConversion(ctx, "dead-worker", 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	w := New(Config{RecoveryGrace: time.Nanosecond}, db, "worker-2")
	time.Sleep(time.Millisecond)
	w.recoverStuck(ctx)

	got, err := db.GetImage(ctx, claimed[0].ID)
	require.NoError(t, err)
	require.Equal(t, string(models.ImageStatusProcessing), got.Status)
}

func TestWorker_PollOnce_ClaimsAndConverts(t *testing.T) {
	dir := t.TempDir()
	db := newTestStore(t)
	seedProcessingImage(t, db, dir, "a.vhdx")
	seedProcessingImage(t, db, dir, "b.vhdx")

	w := New(Config{BatchSize: 10, RetainSource: true}, db, "worker-1")
	w.runner = &fakeRunner{writeOut: true}

	w.pollOnce(context.Background())

	images, err := db.ListImages(context.Background(), string(models.ImageStatusReady))
	require.NoError(t, err)
	require.Len(t, images, 2)
}

func TestWorker_RunStopsOnContextCancel(t *testing.T) {
	db := newTestStore(t)
	w := New(Config{PollInterval: time.Millisecond}, db, "worker-1")
	w.runner = &fakeRunner{}

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(finished)
	}()

	cancel()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after context cancellation")
	}
}
