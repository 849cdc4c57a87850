package transcribe

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/transcribeservice"
	"github.com/aws/aws-sdk-go/service/transcribeservice/transcribeserviceiface"
	"github.com/teris-io/shortid"
)

// SubmitError reports a transcription job request the service did not accept.
type SubmitError struct {
	JobName string
	Err     error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("submit transcription job %q: %v", e.JobName, e.Err)
}

func (e *SubmitError) Unwrap() error { return e.Err }

// NewJobName generates a short, URL-safe, high-entropy job name. Names are
// random rather than content-derived so two runs on the same input never
// collide.
func NewJobName() (string, error) {
	name, err := shortid.Generate()
	if err != nil {
		return "", fmt.Errorf("generate job name: %w", err)
	}
	return name, nil
}

// Submitter starts asynchronous transcription jobs.
type Submitter struct {
	svc          transcribeserviceiface.TranscribeServiceAPI
	languageCode string
	mediaFormat  string
	logger       *slog.Logger
}

func NewSubmitter(svc transcribeserviceiface.TranscribeServiceAPI, languageCode, mediaFormat string, logger *slog.Logger) *Submitter {
	return &Submitter{
		svc:          svc,
		languageCode: languageCode,
		mediaFormat:  mediaFormat,
		logger:       logger,
	}
}

// Submit requests transcription of the media at mediaURI under jobName and
// returns the job id the service acknowledged. The call returns when the job
// is accepted, not when transcription finishes; completion arrives later as a
// job state change event. The acknowledged name is authoritative even if it
// differs from the submitted one.
func (s *Submitter) Submit(ctx context.Context, mediaURI, jobName string) (string, error) {
	params := &transcribeservice.StartTranscriptionJobInput{
		TranscriptionJobName: aws.String(jobName),
		Media: &transcribeservice.Media{
			MediaFileUri: aws.String(mediaURI),
		},
		MediaFormat:  aws.String(s.mediaFormat),
		LanguageCode: aws.String(s.languageCode),
	}

	out, err := s.svc.StartTranscriptionJobWithContext(ctx, params)
	if err != nil {
		return "", &SubmitError{JobName: jobName, Err: err}
	}

	jobID := jobName
	if out.TranscriptionJob != nil && out.TranscriptionJob.TranscriptionJobName != nil {
		jobID = aws.StringValue(out.TranscriptionJob.TranscriptionJobName)
	}

	s.logger.Info("transcription job accepted",
		slog.String("job_id", jobID),
		slog.String("media_uri", mediaURI),
		slog.String("language_code", s.languageCode),
		slog.String("media_format", s.mediaFormat),
	)
	return jobID, nil
}
