package models

import "time"

// ImageFormat is the on-disk container format of an uploaded disk image.
type ImageFormat string

const (
	ImageFormatVHD   ImageFormat = "vhd"
	ImageFormatVHDX  ImageFormat = "vhdx"
	ImageFormatRaw   ImageFormat = "raw"
	ImageFormatQCOW2 ImageFormat = "qcow2"
	ImageFormatVMDK  ImageFormat = "vmdk"
	ImageFormatVDI   ImageFormat = "vdi"
)

// IsValid reports whether f is a recognized image format.
func (f ImageFormat) IsValid() bool {
	switch f {
	case ImageFormatVHD, ImageFormatVHDX, ImageFormatRaw, ImageFormatQCOW2, ImageFormatVMDK, ImageFormatVDI:
		return true
	}
	return false
}

// ImageType classifies the purpose of an image.
type ImageType string

const (
	ImageTypeSystem   ImageType = "system"
	ImageTypeGame     ImageType = "game"
	ImageTypeData     ImageType = "data"
	ImageTypeTemplate ImageType = "template"
)

// ImageStatus tracks an Image through the upload/conversion pipeline.
type ImageStatus string

const (
	ImageStatusUploading  ImageStatus = "uploading"
	ImageStatusProcessing ImageStatus = "processing"
	ImageStatusConverting ImageStatus = "converting"
	ImageStatusReady      ImageStatus = "ready"
	ImageStatusError      ImageStatus = "error"
	ImageStatusDeleted    ImageStatus = "deleted"
)

// CanRetry reports whether an Image in this status may be resubmitted to the
// conversion worker (error -> processing is the only backward transition).
func (s ImageStatus) CanRetry() bool {
	return s == ImageStatusError
}

// HasFileOnDisk reports whether FilePath is expected to point at live bytes
// for an Image currently in status s.
func (s ImageStatus) HasFileOnDisk() bool {
	switch s {
	case ImageStatusUploading, ImageStatusProcessing, ImageStatusConverting, ImageStatusReady:
		return true
	}
	return false
}

// Image is an uploaded disk image, tracked from raw upload through optional
// format conversion to a ready-to-boot RAW file.
type Image struct {
	ID               string      `gorm:"primaryKey;size:36" json:"id"`
	DisplayName      string      `gorm:"uniqueIndex:idx_images_display_name_active;not null;size:255" json:"display_name"`
	FileName         string      `gorm:"not null;size:255" json:"file_name"`
	FilePath         string      `gorm:"not null" json:"file_path"`
	OriginalFileName string      `gorm:"size:255" json:"original_file_name"`
	Format           string      `gorm:"not null;size:20" json:"format"`
	ImageType        string      `gorm:"index;size:20" json:"image_type"`
	PhysicalSizeBytes int64      `gorm:"default:0" json:"physical_size_bytes"`
	VirtualSizeBytes int64       `gorm:"default:0" json:"virtual_size_bytes"`
	MD5Hex           string      `gorm:"size:32" json:"md5_hex,omitempty"`
	SHA256Hex        string      `gorm:"size:64" json:"sha256_hex,omitempty"`
	Status           string      `gorm:"index;not null;size:20" json:"status"`
	ErrorMessage     string      `json:"error_message,omitempty"`
	ProcessingLog    string      `json:"processing_log,omitempty"`
	CreatedByID      string      `gorm:"size:36;index" json:"created_by_id"`
	CreatedAt        time.Time   `gorm:"index;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time   `gorm:"autoUpdateTime" json:"updated_at"`

	// ClaimedBy/ClaimedAt implement the row-level CAS claim used by the
	// conversion worker; ClaimedBy is cleared on success, error, or
	// crash-recovery reclaim.
	ClaimedBy *string    `gorm:"size:64" json:"-"`
	ClaimedAt *time.Time `json:"-"`
}

// TableName returns the table name for Image.
func (Image) TableName() string {
	return "images"
}

// IsDeleted reports whether the image is soft-deleted.
func (i *Image) IsDeleted() bool {
	return i.Status == string(ImageStatusDeleted)
}

// IsReady reports whether the image can be referenced by a new Target.
func (i *Image) IsReady() bool {
	return i.Status == string(ImageStatusReady)
}
