package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// GenerationStatus enumerates the lifecycle states of a generation.
type GenerationStatus string

const (
	GenerationStatusPending    GenerationStatus = "pending"
	GenerationStatusProcessing GenerationStatus = "processing"
	GenerationStatusCompleted  GenerationStatus = "completed"
	GenerationStatusFailed     GenerationStatus = "failed"
	GenerationStatusCancelled  GenerationStatus = "cancelled"
)

// Terminal reports whether the status permits no further transitions.
func (s GenerationStatus) Terminal() bool {
	switch s {
	case GenerationStatusCompleted, GenerationStatusFailed, GenerationStatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to next preserves the
// monotonic pending -> processing -> terminal ordering.
func (s GenerationStatus) CanTransition(next GenerationStatus) bool {
	if s.Terminal() {
		return false
	}
	if s == next {
		return true
	}

	switch s {
	case GenerationStatusPending:
		return true
	case GenerationStatusProcessing:
		return next != GenerationStatusPending
	}
	return false
}

// ArtifactType enumerates the kinds of content easel generates.
type ArtifactType string

const (
	ArtifactTypeImage ArtifactType = "image"
	ArtifactTypeVideo ArtifactType = "video"
	ArtifactTypeAudio ArtifactType = "audio"
	ArtifactTypeText  ArtifactType = "text"
	ArtifactTypeLora  ArtifactType = "lora"
	ArtifactTypeModel ArtifactType = "model"
)

func (a ArtifactType) Valid() bool {
	switch a {
	case ArtifactTypeImage, ArtifactTypeVideo, ArtifactTypeAudio,
		ArtifactTypeText, ArtifactTypeLora, ArtifactTypeModel:
		return true
	}
	return false
}

// Output metadata keys written by batch finalization.
const (
	MetadataBatchID    = "batch_id"
	MetadataBatchIndex = "batch_index"
	MetadataBatchSize  = "batch_size"
)

// Generation is one requested unit of AI-generated content and its
// lifecycle record. The row with ID equal to the submitted job id is
// the primary output of that job; batch siblings get their own rows
// sharing a batch_id in OutputMetadata.
type Generation struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID uuid.UUID `gorm:"type:uuid;index;not null" json:"tenant_id"`
	BoardID  uuid.UUID `gorm:"type:uuid;index;not null" json:"board_id"`
	UserID   uuid.UUID `gorm:"type:uuid;index" json:"user_id"`

	GeneratorName string            `gorm:"type:text;not null" json:"generator_name"`
	ArtifactType  ArtifactType      `gorm:"type:text;not null" json:"artifact_type"`
	InputParams   datatypes.JSONMap `gorm:"type:json" json:"input_params,omitempty"`

	Status        GenerationStatus `gorm:"type:text;index;not null" json:"status"`
	Progress      float64          `gorm:"type:numeric(5,2);not null;default:0" json:"progress"`
	ErrorMessage  string           `json:"error_message,omitempty"`
	ExternalJobID string           `gorm:"type:text;index" json:"external_job_id,omitempty"`

	StorageURL      string                      `json:"storage_url,omitempty"`
	ThumbnailURL    string                      `json:"thumbnail_url,omitempty"`
	AdditionalFiles datatypes.JSONSlice[string] `gorm:"type:json" json:"additional_files,omitempty"`
	OutputMetadata  datatypes.JSONMap           `gorm:"type:json" json:"output_metadata,omitempty"`

	ParentGenerationID *uuid.UUID `gorm:"type:uuid;index" json:"parent_generation_id,omitempty"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null" json:"updated_at"`

	Inputs []*GenerationInput `gorm:"foreignKey:GenerationID;constraint:OnDelete:CASCADE" json:"inputs,omitempty"`
}

type Generations []*Generation

// GenerationInput is one lineage edge: the generation identified by
// GenerationID consumed the generation identified by InputID, in the
// declared role ("reference image", "audio track", ...). Position
// preserves the submitted ordering.
type GenerationInput struct {
	GenerationID uuid.UUID `gorm:"type:uuid;primaryKey" json:"generation_id"`
	InputID      uuid.UUID `gorm:"type:uuid;primaryKey;index" json:"input_id"`
	Role         string    `gorm:"type:text" json:"role,omitempty"`
	Position     int       `gorm:"not null;default:0" json:"position"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
}
