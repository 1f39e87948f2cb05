package worker

import (
	"context"
	"errors"
	"time"

	"github.com/easel-cloud/easel/internal/execution"
	"github.com/easel-cloud/easel/internal/generation"
	"github.com/easel-cloud/easel/internal/generator"
	"github.com/easel-cloud/easel/internal/metrics"
	"github.com/easel-cloud/easel/internal/models"
	"github.com/easel-cloud/easel/internal/progress"
	"github.com/easel-cloud/easel/internal/storage"
	"github.com/easel-cloud/easel/pkg/log"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Runner executes exactly one generator invocation per submitted job
// id. It is constructed once per worker process and injected into the
// queue consumer; it holds no per-job state.
type Runner struct {
	store     *generation.Store
	registry  *generator.Registry
	manifest  *generator.Manifest
	objects   storage.ObjectStore
	publisher *progress.Publisher
	timeout   time.Duration
}

func NewRunner(store *generation.Store, registry *generator.Registry, manifest *generator.Manifest, objects storage.ObjectStore, publisher *progress.Publisher, timeout time.Duration) *Runner {
	if store == nil {
		panic("worker runner requires a generation store")
	}
	if registry == nil {
		panic("worker runner requires a generator registry")
	}
	if publisher == nil {
		panic("worker runner requires a progress publisher")
	}

	return &Runner{
		store:     store,
		registry:  registry,
		manifest:  manifest,
		objects:   objects,
		publisher: publisher,
		timeout:   timeout,
	}
}

// Run performs one attempt at the job. Failures come back as a tagged
// Result rather than propagating, so the queue integration can decide
// whether attempts remain. A failed attempt leaves the record in a
// retryable state; only Fail makes the failure durable.
func (r *Runner) Run(ctx context.Context, jobID uuid.UUID) Result {
	started := time.Now()

	result, gen := r.run(ctx, jobID)

	if result.Failed() {
		log.Error("generation job attempt failed",
			"job_id", jobID,
			"kind", result.Err.Kind,
			"error", result.Err)

		// Advisory only: persisting a terminal status here would make
		// the next redelivery a no-op.
		r.publisher.Broadcast(ctx, progress.Update{
			JobID:   jobID,
			BoardID: boardOf(gen),
			Status:  models.GenerationStatusFailed,
			Phase:   "failed",
			Message: result.Err.Detail,
		})
	}

	if gen != nil {
		status := models.GenerationStatusCompleted
		if result.Failed() {
			status = models.GenerationStatusFailed
		}
		metrics.GenerationDurationSeconds.
			WithLabelValues(gen.GeneratorName, string(status)).
			Observe(time.Since(started).Seconds())

		if !result.Failed() {
			metrics.GenerationsFinishedTotal.
				WithLabelValues(gen.GeneratorName, string(models.GenerationStatusCompleted)).Inc()
		}
	}

	return result
}

// Fail durably marks a job failed. The queue consumer calls this once
// the retry budget is exhausted and it stops redelivering.
func (r *Runner) Fail(ctx context.Context, jobID uuid.UUID, jobErr *JobError) {
	message := "generation failed"
	if jobErr != nil {
		message = jobErr.Detail
	}

	gen, err := r.store.Get(ctx, jobID)
	if err != nil {
		log.Error("failed to load generation for terminal failure",
			"job_id", jobID, "error", err)
	}

	if err := r.publisher.Publish(ctx, progress.Update{
		JobID:   jobID,
		BoardID: boardOf(gen),
		Status:  models.GenerationStatusFailed,
		Phase:   "failed",
		Message: message,
	}); err != nil {
		log.Error("failed to persist job failure", "job_id", jobID, "error", err)
		return
	}

	if gen != nil {
		metrics.GenerationsFinishedTotal.
			WithLabelValues(gen.GeneratorName, string(models.GenerationStatusFailed)).Inc()
	}
}

func (r *Runner) run(ctx context.Context, jobID uuid.UUID) (Result, *models.Generation) {
	// Load first: a redelivery of a finished or cancelled job has
	// nothing to do, and a re-run after a worker crash finds the row
	// still in processing.
	gen, err := r.store.Get(ctx, jobID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return failure(ErrKindPersistence, "generation record not found", err), nil
	}
	if err != nil {
		return failure(ErrKindPersistence, "failed to load generation record", err), nil
	}
	if gen.Status.Terminal() {
		log.Info("skipping job already in terminal status",
			"job_id", jobID, "status", gen.Status)
		return Result{}, nil
	}

	// Step 1: initializing checkpoint, re-asserting whatever
	// non-terminal status the row is in.
	err = r.publisher.Publish(ctx, progress.Update{
		JobID:    jobID,
		BoardID:  gen.BoardID,
		Status:   gen.Status,
		Progress: 0,
		Phase:    "initializing",
	})
	if errors.Is(err, generation.ErrTerminalStatus) {
		// Cancelled between the load and the checkpoint.
		log.Info("skipping job already in terminal status", "job_id", jobID)
		return Result{}, nil
	}
	if err != nil {
		return failure(ErrKindPersistence, "failed to persist initial progress", err), gen
	}

	gname := gen.GeneratorName

	g, ok := r.registry.Get(gname)
	if !ok || !r.manifest.Allows(gname) {
		return failure(ErrKindUnknownGenerator, "unknown generator "+gname, nil), gen
	}

	// Step 3: resolve typed, validated input.
	typed, jobErr := r.resolveInput(ctx, g, gen)
	if jobErr != nil {
		return Result{Err: jobErr}, gen
	}

	// Step 4: per-job execution context.
	execCtx := execution.NewContext(jobID, gen.BoardID, r.store, r.objects, r.publisher)

	log.Info("invoking generator",
		"job_id", jobID,
		"generator", gname,
		"artifact_type", gen.ArtifactType,
		"correlation_id", execCtx.ProviderCorrelationID())

	// Step 5: processing.
	if err := r.publisher.Publish(ctx, progress.Update{
		JobID:    jobID,
		BoardID:  gen.BoardID,
		Status:   models.GenerationStatusProcessing,
		Progress: 0.05,
		Phase:    "processing",
	}); err != nil {
		return failure(ErrKindPersistence, "failed to persist processing progress", err), gen
	}

	// Step 6: invoke under the per-job wall-clock timeout.
	genCtx := ctx
	cancel := func() {}
	if r.timeout > 0 {
		genCtx, cancel = context.WithTimeout(ctx, r.timeout)
	}
	defer cancel()

	output, err := g.Generate(genCtx, typed, execCtx)
	if err != nil {
		if errors.Is(genCtx.Err(), context.DeadlineExceeded) {
			return failure(ErrKindTimeout, "generation exceeded "+r.timeout.String(), err), gen
		}
		return failure(ErrKindProvider, "generator invocation failed", err), gen
	}
	if output == nil || len(output.Artifacts) == 0 {
		return failure(ErrKindArtifact, "no artifact found for job", nil), gen
	}

	// Step 7: locate the primary artifact.
	primary, siblings := splitOutputs(output.Artifacts, jobID)
	if primary == nil {
		return failure(ErrKindArtifact, "no artifact found for job", nil), gen
	}

	// Steps 8 and 9: batch siblings first, then the primary record.
	if jobErr := r.finalize(ctx, gen, primary, siblings); jobErr != nil {
		return Result{Err: jobErr}, gen
	}

	// Step 10: broadcast completion. Finalize already made the
	// terminal state durable, so this is advisory.
	r.publisher.Broadcast(ctx, progress.Update{
		JobID:    jobID,
		BoardID:  gen.BoardID,
		Status:   models.GenerationStatusCompleted,
		Progress: 1.0,
		Phase:    "completed",
	})

	return Result{Outputs: output.Artifacts}, gen
}

// splitOutputs finds the artifact carrying the job's own id. More
// than one match is tolerated with a warning, using the first and
// dropping the rest; a sibling row cannot reuse the primary's id.
// This may mask a generator bug but matches long-standing behavior.
func splitOutputs(artifacts []*generator.Artifact, jobID uuid.UUID) (*generator.Artifact, []*generator.Artifact) {
	var primary *generator.Artifact
	siblings := make([]*generator.Artifact, 0, len(artifacts))

	for _, artifact := range artifacts {
		if artifact.GenerationID == jobID {
			if primary == nil {
				primary = artifact
				continue
			}
			log.Warn("generator returned multiple artifacts matching job id; using the first",
				"job_id", jobID)
			continue
		}
		siblings = append(siblings, artifact)
	}

	return primary, siblings
}

func (r *Runner) finalize(ctx context.Context, gen *models.Generation, primary *generator.Artifact, siblings []*generator.Artifact) *JobError {
	metadata := primary.Metadata

	if len(siblings) > 0 {
		batchID := uuid.NewString()
		batchSize := len(siblings) + 1

		// Reload so sibling rows inherit started_at and the latest
		// request fields.
		current, err := r.store.Get(ctx, gen.ID)
		if err != nil {
			return &JobError{Kind: ErrKindPersistence, Detail: "failed to reload generation for batch finalize", cause: err}
		}

		for i, sibling := range siblings {
			if _, err := r.store.FinalizeSibling(ctx, current, sibling, batchID, i+1, batchSize); err != nil {
				return &JobError{Kind: ErrKindPersistence, Detail: "failed to finalize batch sibling", cause: err}
			}
		}

		metadata = jsonmapWithBatch(metadata, batchID, batchSize)
	}

	if err := r.store.Finalize(ctx, gen.ID, &generation.FinalizeRequest{
		StorageURL:      primary.StorageURL,
		ThumbnailURL:    primary.ThumbnailURL,
		AdditionalFiles: primary.AdditionalFiles,
		Metadata:        metadata,
	}); err != nil {
		return &JobError{Kind: ErrKindPersistence, Detail: "failed to finalize generation", cause: err}
	}

	return nil
}

func boardOf(gen *models.Generation) uuid.UUID {
	if gen == nil {
		return uuid.Nil
	}
	return gen.BoardID
}
