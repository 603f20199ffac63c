package models

import (
	"time"

	"gorm.io/datatypes"
)

// Document represents a schemaless record in a collection.
type Document struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	DatabaseID   string         `gorm:"type:varchar(64);not null;uniqueIndex:idx_documents_key,priority:1"` // Logical database ID.
	CollectionID string         `gorm:"type:varchar(64);not null;uniqueIndex:idx_documents_key,priority:2"` // Collection ID.
	DocumentID   string         `gorm:"type:varchar(36);not null;uniqueIndex:idx_documents_key,priority:3"` // Public document ID.
	OwnerID      string         `gorm:"type:varchar(36);not null;index"`                                    // Account allowed to modify the document.
	Data         datatypes.JSON `gorm:"type:jsonb;not null"`                                                // Attribute values.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// File represents an uploaded blob in a bucket.
type File struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	BucketID string `gorm:"type:varchar(64);not null;uniqueIndex:idx_files_key,priority:1"` // Bucket ID.
	FileID   string `gorm:"type:varchar(36);not null;uniqueIndex:idx_files_key,priority:2"` // Public file ID.
	OwnerID  string `gorm:"type:varchar(36);not null;index"`                                // Uploading account ID.

	Name     string `gorm:"type:text"`          // Original file name.
	MimeType string `gorm:"type:varchar(255)"`  // Detected content type.
	Size     int64  `gorm:"not null;default:0"` // Size in bytes.
	Content  []byte `gorm:"not null"`           // Raw bytes.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
