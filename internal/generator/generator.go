package generator

import (
	"context"
	"fmt"

	"github.com/easel-cloud/easel/internal/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// InputField describes one field of a generator's input schema. When
// ArtifactKind is non-empty the field's raw value is a generation id
// that must be substituted with a retrievable artifact handle before
// validation.
type InputField struct {
	Name         string
	ArtifactKind models.ArtifactType
}

// ValidationError reports a raw input document that does not satisfy
// a generator's declared schema. It is fatal for the attempt.
type ValidationError struct {
	Generator string
	Field     string
	Reason    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid input for generator %q: field %q: %s", e.Generator, e.Field, e.Reason)
}

// Artifact describes one stored output of a generator invocation.
type Artifact struct {
	GenerationID    uuid.UUID           `json:"generation_id"`
	Kind            models.ArtifactType `json:"kind"`
	StorageURL      string              `json:"storage_url"`
	ThumbnailURL    string              `json:"thumbnail_url,omitempty"`
	AdditionalFiles []string            `json:"additional_files,omitempty"`
	Metadata        datatypes.JSONMap   `json:"metadata,omitempty"`
}

// Output is the full result set of one generator invocation. Exactly
// one artifact is expected to carry the submitted job id.
type Output struct {
	Artifacts []*Artifact
}

// ExecContext is the capability surface handed to generator code. It
// hides storage, database and queue details; see internal/execution
// for the production implementation.
type ExecContext interface {
	// JobID identifies the generation this invocation serves.
	JobID() uuid.UUID

	// ProviderCorrelationID correlates all provider-side calls made
	// for a single job attempt in logs.
	ProviderCorrelationID() string

	// ResolveArtifact turns a previously stored artifact reference
	// into a readable local path.
	ResolveArtifact(ctx context.Context, ref string) (string, error)

	StoreImageResult(ctx context.Context, res ImageResult) (*Artifact, error)
	StoreVideoResult(ctx context.Context, res VideoResult) (*Artifact, error)
	StoreAudioResult(ctx context.Context, res AudioResult) (*Artifact, error)
	StoreTextResult(ctx context.Context, res TextResult) (*Artifact, error)

	// PublishProgress forwards a fractional (0.0-1.0) progress value
	// to the progress publisher. Best-effort: failures are logged and
	// never surface to the generator.
	PublishProgress(ctx context.Context, progress float64, phase, message string)

	// SetExternalJobID durably records the upstream provider's job id.
	SetExternalJobID(ctx context.Context, externalID string) error
}

// ImageResult carries the bytes and metadata of a generated image.
type ImageResult struct {
	GenerationID uuid.UUID
	Data         []byte
	ContentType  string
	Width        int
	Height       int
	Thumbnail    []byte
	Metadata     datatypes.JSONMap
}

// VideoResult carries the bytes and metadata of a generated video.
type VideoResult struct {
	GenerationID uuid.UUID
	Data         []byte
	ContentType  string
	Width        int
	Height       int
	DurationSecs float64
	Thumbnail    []byte
	Metadata     datatypes.JSONMap
}

// AudioResult carries the bytes and metadata of generated audio.
type AudioResult struct {
	GenerationID uuid.UUID
	Data         []byte
	ContentType  string
	DurationSecs float64
	SampleRate   int
	Metadata     datatypes.JSONMap
}

// TextResult carries generated text and metadata.
type TextResult struct {
	GenerationID uuid.UUID
	Text         string
	Metadata     datatypes.JSONMap
}

// Generator is implemented by every content generation backend easel
// can invoke. Implementations live outside this repository; tests use
// doubles.
type Generator interface {
	Name() string
	DescribeInputFields() []InputField

	// Validate coerces the raw input document into the generator's
	// typed input, returning a *ValidationError when it cannot.
	Validate(params datatypes.JSONMap) (interface{}, error)

	// Generate runs the generation, storing results through exec.
	// Implementations may publish intermediate progress at their
	// discretion.
	Generate(ctx context.Context, input interface{}, exec ExecContext) (*Output, error)
}
