package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/easel-cloud/easel/internal/generator"
	"github.com/easel-cloud/easel/internal/models"
	"github.com/easel-cloud/easel/pkg/jsonmap"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// resolveInput looks up the generator's declared schema, substitutes
// fields referencing prior generation ids with retrievable artifact
// handles, then validates the result. Any failure here is fatal for
// the attempt.
func (r *Runner) resolveInput(ctx context.Context, g generator.Generator, gen *models.Generation) (interface{}, *JobError) {
	params := make(datatypes.JSONMap, len(gen.InputParams))
	for key, value := range gen.InputParams {
		params[key] = value
	}

	for _, field := range g.DescribeInputFields() {
		if field.ArtifactKind == "" {
			continue
		}

		raw, ok := jsonmap.String(params, field.Name)
		if !ok || raw == "" {
			continue
		}

		handle, err := r.resolveArtifactField(ctx, gen, raw)
		if err != nil {
			return nil, &JobError{
				Kind:   ErrKindValidation,
				Detail: fmt.Sprintf("failed to resolve input field %q", field.Name),
				cause:  err,
			}
		}
		params[field.Name] = handle
	}

	typed, err := g.Validate(params)
	if err != nil {
		return nil, &JobError{
			Kind:   ErrKindValidation,
			Detail: err.Error(),
			cause:  err,
		}
	}

	return typed, nil
}

// resolveArtifactField turns a generation id reference into a local
// artifact handle. The referenced generation must exist in the same
// tenant and have a stored artifact.
func (r *Runner) resolveArtifactField(ctx context.Context, gen *models.Generation, ref string) (string, error) {
	inputID, err := uuid.Parse(ref)
	if err != nil {
		// Not a generation id; pass the ref straight to storage.
		return r.objects.Fetch(ctx, ref)
	}

	input, err := r.store.Get(ctx, inputID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("input generation %s not found", inputID)
	}
	if err != nil {
		return "", err
	}

	if input.TenantID != gen.TenantID {
		return "", fmt.Errorf("input generation %s not found", inputID)
	}
	if input.StorageURL == "" {
		return "", fmt.Errorf("input generation %s has no stored artifact", inputID)
	}

	return r.objects.Fetch(ctx, input.StorageURL)
}

func jsonmapWithBatch(metadata datatypes.JSONMap, batchID string, batchSize int) datatypes.JSONMap {
	return jsonmap.Merge(metadata, datatypes.JSONMap{
		models.MetadataBatchID:    batchID,
		models.MetadataBatchIndex: 0,
		models.MetadataBatchSize:  batchSize,
	})
}
