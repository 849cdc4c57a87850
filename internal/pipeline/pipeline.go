package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"example.com/voicescribe/internal/acquire"
	"example.com/voicescribe/internal/database"
	"example.com/voicescribe/internal/transcribe"
)

// Acquirer stages the source audio into the run's workspace.
type Acquirer interface {
	Acquire(ctx context.Context, target string, ws *acquire.Workspace, name string) (string, error)
}

// Uploader pushes a staged file to durable object storage and returns its URI.
type Uploader interface {
	Upload(ctx context.Context, path, key string) (string, error)
}

// Submitter requests asynchronous transcription of a blob URI and returns the
// acknowledged job id.
type Submitter interface {
	Submit(ctx context.Context, mediaURI, jobName string) (string, error)
}

// Recorder persists the correlation record for a submitted job.
type Recorder interface {
	CreateRecord(ctx context.Context, s3URI, jobID, messageID string) (database.Record, error)
}

// Result reports what one run accomplished. JobID and BlobURI are filled as
// soon as their stage succeeds, so a failure in a later stage still surfaces
// them for manual reconciliation.
type Result struct {
	JobName string
	JobID   string
	BlobURI string
	Record  database.Record
}

// Pipeline runs one job submission: acquire the audio, upload it, submit the
// transcription job, record the correlation. Stages run strictly in sequence;
// the first error aborts the run.
type Pipeline struct {
	acquirer    Acquirer
	uploader    Uploader
	submitter   Submitter
	recorder    Recorder
	mediaFormat string
	logger      *slog.Logger

	newJobName func() (string, error)
}

func New(a Acquirer, u Uploader, s Submitter, r Recorder, mediaFormat string, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		acquirer:    a,
		uploader:    u,
		submitter:   s,
		recorder:    r,
		mediaFormat: mediaFormat,
		logger:      logger,
		newJobName:  transcribe.NewJobName,
	}
}

// Run executes one submission for the audio at target. messageID, when
// non-empty, is stored on the record as a weak reference to the message the
// audio belongs to.
//
// Failure policy: an acquisition or upload failure aborts before any job
// exists server-side. A submission failure leaves the uploaded blob in place
// (no compensating delete). A recording failure is reported with the job id
// and blob URI still attached, because the job is already running server-side
// and cannot be correlated later without them.
func (p *Pipeline) Run(ctx context.Context, target, messageID string) (Result, error) {
	var res Result

	jobName, err := p.newJobName()
	if err != nil {
		return res, err
	}
	res.JobName = jobName
	fileName := jobName + "." + p.mediaFormat

	p.logger.Info("run starting", slog.String("job_name", jobName), slog.String("target", target))

	ws, err := acquire.NewWorkspace(jobName)
	if err != nil {
		return res, &acquire.AcquireError{Target: target, Err: err}
	}
	// The workspace is removed again explicitly once the upload has consumed
	// it; this defer covers every earlier failure path.
	defer func() {
		if err := ws.Remove(); err != nil {
			p.logger.Warn("staging cleanup failed", slog.String("job_name", jobName), slog.String("error", err.Error()))
		}
	}()

	staged, err := p.acquirer.Acquire(ctx, target, ws, fileName)
	if err != nil {
		return res, fmt.Errorf("run %s aborted before upload: %w", jobName, err)
	}

	uri, err := p.uploader.Upload(ctx, staged, fileName)
	if err != nil {
		return res, fmt.Errorf("run %s aborted before submission: %w", jobName, err)
	}
	res.BlobURI = uri

	// The upload has consumed the staged audio; nothing after this point
	// reads local files.
	if err := ws.Remove(); err != nil {
		p.logger.Warn("staging cleanup failed", slog.String("job_name", jobName), slog.String("error", err.Error()))
	}

	jobID, err := p.submitter.Submit(ctx, uri, jobName)
	if err != nil {
		// The blob stays in place; no job was accepted server-side.
		return res, fmt.Errorf("run %s aborted after upload: %w", jobName, err)
	}
	res.JobID = jobID

	rec, err := p.recorder.CreateRecord(ctx, uri, jobID, messageID)
	if err != nil {
		// The job is already running server-side with no local record.
		// Surface the identifiers so an operator can reconcile by hand.
		p.logger.Error("job submitted but correlation record was not created",
			slog.String("job_id", jobID),
			slog.String("s3_uri", uri),
			slog.String("error", err.Error()),
		)
		return res, fmt.Errorf("run %s: job %s submitted for %s but not recorded: %w", jobName, jobID, uri, err)
	}
	res.Record = rec

	p.logger.Info("run complete",
		slog.String("job_id", jobID),
		slog.String("s3_uri", uri),
		slog.String("created_at", rec.CreatedAt),
	)
	return res, nil
}
