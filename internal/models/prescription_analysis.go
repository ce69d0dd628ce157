package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// PrescriptionAnalysis keeps the output of one successful image analysis.
// UID is nil when the upload came without a session.
type PrescriptionAnalysis struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UID           *int           `gorm:"index" json:"uid,omitempty"`
	FileName      string         `gorm:"type:varchar(255)" json:"file_name"`
	ImageSHA256   string         `gorm:"type:char(64);index" json:"image_sha256"`
	Result        datatypes.JSON `json:"result"`
	AccuracyScore float64        `json:"accuracy_score"`
	Cached        bool           `json:"cached"`

	CreatedAt time.Time `json:"created_at"`
}
