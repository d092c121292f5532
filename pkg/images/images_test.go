package images

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ggnet/ggnetd/pkg/ggnetrr"
	"github.com/ggnet/ggnetd/pkg/models"
	"github.com/ggnet/ggnetd/pkg/store"
)

func newTestStore(t *testing.T) (*Store, store.Store) {
	t.Helper()
	dir := t.TempDir()
	db, err := store.New(&store.Config{Type: store.DatabaseTypeSQLite, SQLite: store.SQLiteConfig{Path: filepath.Join(dir, "test.db")}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s, err := New(Config{
		UploadDir:      filepath.Join(dir, "uploads"),
		ImagesDir:      filepath.Join(dir, "images"),
		MaxUploadBytes: 1024,
	}, db)
	require.NoError(t, err)
	return s, db
}

func TestAcceptUpload_HappyPath(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	payload := bytes.Repeat([]byte("a"), 100)
	img, err := s.AcceptUpload(ctx, UploadMetadata{
		DisplayName:      "win11",
		OriginalFileName: "win11.vhdx",
		ImageType:        models.ImageTypeSystem,
		CreatedByID:      "user-1",
	}, bytes.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, string(models.ImageStatusProcessing), img.Status)
	require.Equal(t, int64(100), img.PhysicalSizeBytes)
	require.NotEmpty(t, img.MD5Hex)
	require.NotEmpty(t, img.SHA256Hex)
}

func TestAcceptUpload_UnrecognizedFormat(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.AcceptUpload(context.Background(), UploadMetadata{
		DisplayName:      "bogus",
		OriginalFileName: "bogus.exe",
	}, bytes.NewReader([]byte("x")))
	require.Error(t, err)
	require.Equal(t, ggnetrr.Validation, ggnetrr.KindOf(err))
}

func TestAcceptUpload_QuotaBoundary(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	exact := bytes.Repeat([]byte("b"), 1024)
	_, err := s.AcceptUpload(ctx, UploadMetadata{DisplayName: "exact", OriginalFileName: "exact.raw"}, bytes.NewReader(exact))
	require.NoError(t, err)

	overQuota := bytes.Repeat([]byte("c"), 1025)
	_, err = s.AcceptUpload(ctx, UploadMetadata{DisplayName: "over", OriginalFileName: "over.raw"}, bytes.NewReader(overQuota))
	require.Error(t, err)
	require.Equal(t, ggnetrr.Validation, ggnetrr.KindOf(err))
}

func TestAcceptUpload_DuplicateDisplayName(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	meta := UploadMetadata{DisplayName: "dup", OriginalFileName: "dup.raw"}
	_, err := s.AcceptUpload(ctx, meta, bytes.NewReader([]byte("one")))
	require.NoError(t, err)

	_, err = s.AcceptUpload(ctx, meta, bytes.NewReader([]byte("two")))
	require.Error(t, err)
	require.Equal(t, ggnetrr.Conflict, ggnetrr.KindOf(err))
}

func TestSoftDelete_RefusedWhileInUse(t *testing.T) {
	s, db := newTestStore(t)
	ctx := context.Background()

	img, err := s.AcceptUpload(ctx, UploadMetadata{DisplayName: "inuse", OriginalFileName: "inuse.raw"}, bytes.NewReader([]byte("data")))
	require.NoError(t, err)

	_, err = db.CreateTarget(ctx, &models.Target{
		TargetID: "machine_1", IQN: "iqn.test:target-machine_1", MachineID: "m1",
		ImageID: img.ID, ImagePath: img.FilePath, InitiatorIQN: "iqn.test:initiator-aabbccddeeff",
		Status: string(models.TargetStatusActive),
	})
	require.NoError(t, err)

	err = s.SoftDelete(ctx, img.ID)
	require.Error(t, err)
	require.Equal(t, ggnetrr.Conflict, ggnetrr.KindOf(err))
}

func TestIntegrity(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	img, err := s.AcceptUpload(ctx, UploadMetadata{DisplayName: "chk", OriginalFileName: "chk.raw"}, bytes.NewReader([]byte("checksum-me")))
	require.NoError(t, err)

	integrity, err := s.Integrity(ctx, img.ID)
	require.NoError(t, err)
	require.Equal(t, img.MD5Hex, integrity.MD5)
	require.Equal(t, img.SHA256Hex, integrity.SHA256)
}
