package execution

import (
	"context"
	"fmt"

	"github.com/easel-cloud/easel/internal/generation"
	"github.com/easel-cloud/easel/internal/generator"
	"github.com/easel-cloud/easel/internal/models"
	"github.com/easel-cloud/easel/internal/progress"
	"github.com/easel-cloud/easel/internal/storage"
	"github.com/easel-cloud/easel/pkg/jsonmap"
	"github.com/easel-cloud/easel/pkg/log"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Context is the per-job capability facade handed to generator code.
// It hides database, storage and queue details behind the
// generator.ExecContext surface.
type Context struct {
	jobID         uuid.UUID
	boardID       uuid.UUID
	correlationID string

	store     *generation.Store
	objects   storage.ObjectStore
	publisher *progress.Publisher
}

func NewContext(jobID, boardID uuid.UUID, store *generation.Store, objects storage.ObjectStore, publisher *progress.Publisher) *Context {
	return &Context{
		jobID:         jobID,
		boardID:       boardID,
		correlationID: uuid.NewString(),
		store:         store,
		objects:       objects,
		publisher:     publisher,
	}
}

func (c *Context) JobID() uuid.UUID {
	return c.jobID
}

// ProviderCorrelationID is minted once per context construction and
// correlates all provider-side calls for a single job attempt.
func (c *Context) ProviderCorrelationID() string {
	return c.correlationID
}

func (c *Context) ResolveArtifact(ctx context.Context, ref string) (string, error) {
	return c.objects.Fetch(ctx, ref)
}

func (c *Context) StoreImageResult(ctx context.Context, res generator.ImageResult) (*generator.Artifact, error) {
	id := c.artifactID(res.GenerationID)

	url, err := c.objects.Put(ctx, objectKey(id, res.ContentType), res.Data, res.ContentType)
	if err != nil {
		return nil, err
	}

	artifact := &generator.Artifact{
		GenerationID: id,
		Kind:         models.ArtifactTypeImage,
		StorageURL:   url,
		Metadata: jsonmap.Merge(res.Metadata, datatypes.JSONMap{
			"width":  res.Width,
			"height": res.Height,
		}),
	}

	if len(res.Thumbnail) > 0 {
		thumbURL, err := c.objects.Put(ctx, thumbnailKey(id), res.Thumbnail, "image/webp")
		if err != nil {
			return nil, err
		}
		artifact.ThumbnailURL = thumbURL
	}

	return artifact, nil
}

func (c *Context) StoreVideoResult(ctx context.Context, res generator.VideoResult) (*generator.Artifact, error) {
	id := c.artifactID(res.GenerationID)

	url, err := c.objects.Put(ctx, objectKey(id, res.ContentType), res.Data, res.ContentType)
	if err != nil {
		return nil, err
	}

	artifact := &generator.Artifact{
		GenerationID: id,
		Kind:         models.ArtifactTypeVideo,
		StorageURL:   url,
		Metadata: jsonmap.Merge(res.Metadata, datatypes.JSONMap{
			"width":         res.Width,
			"height":        res.Height,
			"duration_secs": res.DurationSecs,
		}),
	}

	if len(res.Thumbnail) > 0 {
		thumbURL, err := c.objects.Put(ctx, thumbnailKey(id), res.Thumbnail, "image/webp")
		if err != nil {
			return nil, err
		}
		artifact.ThumbnailURL = thumbURL
	}

	return artifact, nil
}

func (c *Context) StoreAudioResult(ctx context.Context, res generator.AudioResult) (*generator.Artifact, error) {
	id := c.artifactID(res.GenerationID)

	url, err := c.objects.Put(ctx, objectKey(id, res.ContentType), res.Data, res.ContentType)
	if err != nil {
		return nil, err
	}

	return &generator.Artifact{
		GenerationID: id,
		Kind:         models.ArtifactTypeAudio,
		StorageURL:   url,
		Metadata: jsonmap.Merge(res.Metadata, datatypes.JSONMap{
			"duration_secs": res.DurationSecs,
			"sample_rate":   res.SampleRate,
		}),
	}, nil
}

func (c *Context) StoreTextResult(ctx context.Context, res generator.TextResult) (*generator.Artifact, error) {
	id := c.artifactID(res.GenerationID)

	url, err := c.objects.Put(ctx, objectKey(id, "text/plain"), []byte(res.Text), "text/plain")
	if err != nil {
		return nil, err
	}

	return &generator.Artifact{
		GenerationID: id,
		Kind:         models.ArtifactTypeText,
		StorageURL:   url,
		Metadata:     res.Metadata,
	}, nil
}

// PublishProgress forwards a fractional progress value to the
// progress publisher. Failures are logged and never surface: progress
// reporting must not abort a successful generation.
func (c *Context) PublishProgress(ctx context.Context, prog float64, phase, message string) {
	err := c.publisher.Publish(ctx, progress.Update{
		JobID:    c.jobID,
		BoardID:  c.boardID,
		Status:   models.GenerationStatusProcessing,
		Progress: prog,
		Phase:    phase,
		Message:  message,
	})
	if err != nil {
		log.Warn("generator progress publish failed",
			"job_id", c.jobID,
			"correlation_id", c.correlationID,
			"phase", phase,
			"error", err)
	}
}

// SetExternalJobID records the upstream provider's job id. Unlike
// progress this must survive even if the rest of progress reporting
// fails, so errors propagate to the generator.
func (c *Context) SetExternalJobID(ctx context.Context, externalID string) error {
	return c.store.SetExternalJobID(ctx, c.jobID, externalID)
}

func (c *Context) artifactID(requested uuid.UUID) uuid.UUID {
	if requested == uuid.Nil {
		return c.jobID
	}
	return requested
}

func objectKey(id uuid.UUID, contentType string) string {
	return fmt.Sprintf("generations/%s/output%s", id, extensionFor(contentType))
}

func thumbnailKey(id uuid.UUID) string {
	return fmt.Sprintf("generations/%s/thumbnail.webp", id)
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "video/mp4":
		return ".mp4"
	case "video/webm":
		return ".webm"
	case "audio/mpeg":
		return ".mp3"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "audio/flac":
		return ".flac"
	case "text/plain":
		return ".txt"
	default:
		return ".bin"
	}
}
