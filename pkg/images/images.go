// Package images implements the Image Store: accepting uploads, computing
// checksums, and serving the CRUD surface the operator API and the
// conversion worker build on. Streaming upload and single-pass checksum
// computation are grounded on the teacher's streaming writer in
// pkg/payload/store/fs, adapted from content-addressed block storage to a
// single whole-file upload path.
package images

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ggnet/ggnetd/internal/logger"
	"github.com/ggnet/ggnetd/pkg/ggnetrr"
	"github.com/ggnet/ggnetd/pkg/models"
	"github.com/ggnet/ggnetd/pkg/store"
)

// Config configures the image store's filesystem layout and quota.
type Config struct {
	// UploadDir receives in-flight uploads before they are renamed into
	// ImagesDir under their final name.
	UploadDir string

	// ImagesDir holds accepted uploads, keyed by Image.FileName.
	ImagesDir string

	// MaxUploadBytes bounds accepted upload size. Zero means unbounded.
	MaxUploadBytes int64
}

// recognizedFormats is the set of extensions accept_upload will take,
// matching the ImageFormat enum in pkg/models.
var recognizedFormats = map[string]models.ImageFormat{
	".vhd":   models.ImageFormatVHD,
	".vhdx":  models.ImageFormatVHDX,
	".raw":   models.ImageFormatRaw,
	".img":   models.ImageFormatRaw,
	".qcow2": models.ImageFormatQCOW2,
	".vmdk":  models.ImageFormatVMDK,
	".vdi":   models.ImageFormatVDI,
}

// Store implements the Image Store component over a store.ImageStore and
// the local filesystem.
type Store struct {
	cfg Config
	db  store.ImageStore
}

// New creates a Store, ensuring UploadDir and ImagesDir exist.
func New(cfg Config, db store.ImageStore) (*Store, error) {
	for _, dir := range []string{cfg.UploadDir, cfg.ImagesDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, ggnetrr.New(ggnetrr.Internal, "images.new", fmt.Errorf("create %s: %w", dir, err))
		}
	}
	return &Store{cfg: cfg, db: db}, nil
}

// UploadMetadata carries the caller-declared attributes of an upload.
type UploadMetadata struct {
	DisplayName      string
	OriginalFileName string
	ImageType        models.ImageType
	CreatedByID      string
}

// AcceptUpload streams body to a temporary path under UploadDir, validates
// format/duplicate/quota, computes MD5+SHA256 in the same pass, then renames
// the file into ImagesDir and inserts the Image row at status=processing
// (the upload itself is the "uploading" phase; by the time this returns the
// bytes are durable and the row reflects the next stage, ready for the
// conversion worker to claim).
func (s *Store) AcceptUpload(ctx context.Context, meta UploadMetadata, body io.Reader) (*models.Image, error) {
	ext := strings.ToLower(filepath.Ext(meta.OriginalFileName))
	format, ok := recognizedFormats[ext]
	if !ok {
		return nil, ggnetrr.New(ggnetrr.Validation, "images.accept_upload", fmt.Errorf("unrecognized image format %q", ext))
	}

	tmp, err := os.CreateTemp(s.cfg.UploadDir, ".upload-*")
	if err != nil {
		return nil, ggnetrr.New(ggnetrr.Internal, "images.accept_upload", err)
	}
	tmpPath := tmp.Name()
	cleanupTmp := true
	defer func() {
		if cleanupTmp {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	md5h := md5.New()
	sha256h := sha256.New()
	written, err := copyWithQuota(tmp, io.MultiWriter(md5h, sha256h), body, s.cfg.MaxUploadBytes)
	if err != nil {
		return nil, err
	}
	if err := tmp.Sync(); err != nil {
		return nil, ggnetrr.New(ggnetrr.Internal, "images.accept_upload", fmt.Errorf("fsync upload: %w", err))
	}
	if err := tmp.Close(); err != nil {
		return nil, ggnetrr.New(ggnetrr.Internal, "images.accept_upload", fmt.Errorf("close upload: %w", err))
	}

	fileName := fmt.Sprintf("%d_%s", time.Now().UnixNano(), sanitizeFileName(meta.OriginalFileName))
	finalPath := filepath.Join(s.cfg.ImagesDir, fileName)
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return nil, ggnetrr.New(ggnetrr.Internal, "images.accept_upload", fmt.Errorf("rename into place: %w", err))
	}
	cleanupTmp = false

	image := &models.Image{
		DisplayName:       meta.DisplayName,
		FileName:          fileName,
		FilePath:          finalPath,
		OriginalFileName:  meta.OriginalFileName,
		Format:            string(format),
		ImageType:         string(meta.ImageType),
		PhysicalSizeBytes: written,
		MD5Hex:            fmt.Sprintf("%x", md5h.Sum(nil)),
		SHA256Hex:         fmt.Sprintf("%x", sha256h.Sum(nil)),
		Status:            string(models.ImageStatusProcessing),
		CreatedByID:       meta.CreatedByID,
	}

	id, err := s.db.CreateImage(ctx, image)
	if err != nil {
		os.Remove(finalPath)
		if err == models.ErrDuplicateImage {
			return nil, ggnetrr.New(ggnetrr.Conflict, "images.accept_upload", err)
		}
		return nil, ggnetrr.New(ggnetrr.Internal, "images.accept_upload", err)
	}
	image.ID = id

	logger.Info("image accepted", logger.KeyImageID, id, logger.KeyDisplayName, meta.DisplayName, logger.KeyBytes, written)
	return image, nil
}

// Get returns an image by ID.
func (s *Store) Get(ctx context.Context, id string) (*models.Image, error) {
	img, err := s.db.GetImage(ctx, id)
	if err != nil {
		return nil, ggnetrr.New(ggnetrr.NotFound, "images.get", err)
	}
	return img, nil
}

// List returns images, optionally filtered by status.
func (s *Store) List(ctx context.Context, status string) ([]*models.Image, error) {
	return s.db.ListImages(ctx, status)
}

// MetadataPatch is the set of Image fields update_metadata may change.
type MetadataPatch struct {
	DisplayName *string
	ImageType   *string
}

// UpdateMetadata applies patch to image id and persists it.
func (s *Store) UpdateMetadata(ctx context.Context, id string, patch MetadataPatch) (*models.Image, error) {
	img, err := s.db.GetImage(ctx, id)
	if err != nil {
		return nil, ggnetrr.New(ggnetrr.NotFound, "images.update_metadata", err)
	}
	if patch.DisplayName != nil {
		img.DisplayName = *patch.DisplayName
	}
	if patch.ImageType != nil {
		img.ImageType = *patch.ImageType
	}
	if err := s.db.UpdateImage(ctx, img); err != nil {
		return nil, ggnetrr.New(ggnetrr.Internal, "images.update_metadata", err)
	}
	return img, nil
}

// SoftDelete marks image id deleted, refusing while any active Target
// still references it (the store layer enforces this check).
func (s *Store) SoftDelete(ctx context.Context, id string) error {
	if err := s.db.SoftDeleteImage(ctx, id); err != nil {
		if err == models.ErrImageInUse {
			return ggnetrr.New(ggnetrr.Conflict, "images.soft_delete", err)
		}
		if err == models.ErrImageNotFound {
			return ggnetrr.New(ggnetrr.NotFound, "images.soft_delete", err)
		}
		return ggnetrr.New(ggnetrr.Internal, "images.soft_delete", err)
	}
	return nil
}

// Integrity reports the checksums and size recorded for image id.
type Integrity struct {
	MD5    string
	SHA256 string
	Bytes  int64
}

// Integrity reads the checksums populated at upload time (MD5/SHA256 are
// computed once, during accept_upload; the conversion worker does not
// recompute them for the converted output).
func (s *Store) Integrity(ctx context.Context, id string) (*Integrity, error) {
	img, err := s.db.GetImage(ctx, id)
	if err != nil {
		return nil, ggnetrr.New(ggnetrr.NotFound, "images.integrity", err)
	}
	return &Integrity{MD5: img.MD5Hex, SHA256: img.SHA256Hex, Bytes: img.PhysicalSizeBytes}, nil
}

// copyWithQuota copies from src into dst and hash simultaneously, rejecting
// the upload once more than maxBytes have been written (zero means
// unbounded). It allows exactly maxBytes through and fails on the byte
// after, matching the spec's "one byte more rejected" boundary.
func copyWithQuota(dst io.Writer, hashes io.Writer, src io.Reader, maxBytes int64) (int64, error) {
	w := io.MultiWriter(dst, hashes)
	if maxBytes <= 0 {
		n, err := io.Copy(w, src)
		if err != nil {
			return n, ggnetrr.New(ggnetrr.Internal, "images.accept_upload", err)
		}
		return n, nil
	}

	limited := io.LimitReader(src, maxBytes+1)
	n, err := io.Copy(w, limited)
	if err != nil {
		return n, ggnetrr.New(ggnetrr.Internal, "images.accept_upload", err)
	}
	if n > maxBytes {
		return n, ggnetrr.New(ggnetrr.Validation, "images.accept_upload", fmt.Errorf("upload exceeds quota of %d bytes", maxBytes))
	}
	return n, nil
}

func sanitizeFileName(name string) string {
	name = filepath.Base(name)
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "upload"
	}
	return b.String()
}
