package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"

	"example.com/voicescribe/internal/acquire"
	"example.com/voicescribe/internal/database"
	"example.com/voicescribe/internal/storage"
	"example.com/voicescribe/internal/transcribe"
)

type fakeAcquirer struct {
	err    error
	staged string
}

func (f *fakeAcquirer) Acquire(ctx context.Context, target string, ws *acquire.Workspace, name string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	path := ws.Path(name)
	if err := os.WriteFile(path, []byte("staged audio"), 0o644); err != nil {
		return "", err
	}
	f.staged = path
	return path, nil
}

type fakeUploader struct {
	err      error
	location string
	calls    int
	key      string
}

func (f *fakeUploader) Upload(ctx context.Context, path, key string) (string, error) {
	f.calls++
	f.key = key
	if f.err != nil {
		return "", f.err
	}
	return f.location, nil
}

type fakeSubmitter struct {
	err    error
	ackID  string
	calls  int
	uri    string
	name   string
	staged *fakeAcquirer
	gone   bool
}

func (f *fakeSubmitter) Submit(ctx context.Context, mediaURI, jobName string) (string, error) {
	f.calls++
	f.uri = mediaURI
	f.name = jobName
	if f.staged != nil {
		_, err := os.Stat(f.staged.staged)
		f.gone = os.IsNotExist(err)
	}
	if f.err != nil {
		return "", f.err
	}
	if f.ackID != "" {
		return f.ackID, nil
	}
	return jobName, nil
}

type fakeRecorder struct {
	err   error
	calls int
	s3URI string
	jobID string
	msgID string
}

func (f *fakeRecorder) CreateRecord(ctx context.Context, s3URI, jobID, messageID string) (database.Record, error) {
	f.calls++
	f.s3URI = s3URI
	f.jobID = jobID
	f.msgID = messageID
	if f.err != nil {
		return database.Record{}, f.err
	}
	return database.Record{
		JobID:     jobID,
		S3URI:     s3URI,
		CreatedAt: "2020-03-14T15:09:26Z",
		JobStatus: "IN_PROGRESS",
		MessageID: messageID,
	}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestPipeline(a *fakeAcquirer, u *fakeUploader, s *fakeSubmitter, r *fakeRecorder) *Pipeline {
	p := New(a, u, s, r, "wav", discardLogger())
	p.newJobName = func() (string, error) { return "Ab3kZ9", nil }
	return p
}

func TestRunSuccess(t *testing.T) {
	acq := &fakeAcquirer{}
	up := &fakeUploader{location: "https://store/bucket/voicemail_001.wav"}
	sub := &fakeSubmitter{}
	rec := &fakeRecorder{}

	res, err := newTestPipeline(acq, up, sub, rec).Run(context.Background(), "https://example.com/voicemail_001.wav", "")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.JobID != "Ab3kZ9" {
		t.Errorf("wrong job id: %q", res.JobID)
	}
	if res.BlobURI != "https://store/bucket/voicemail_001.wav" {
		t.Errorf("wrong blob uri: %q", res.BlobURI)
	}
	if rec.calls != 1 {
		t.Errorf("exactly one record must be created, got %d", rec.calls)
	}
	if rec.s3URI != res.BlobURI || rec.jobID != res.JobID {
		t.Errorf("record inputs mismatch: %+v", rec)
	}
	if res.Record.MessageText != nil {
		t.Errorf("message_text should start null")
	}
	if up.key != "Ab3kZ9.wav" {
		t.Errorf("storage key should be job name plus extension, got %q", up.key)
	}
	if sub.uri != res.BlobURI {
		t.Errorf("submitter must receive the uploaded uri, got %q", sub.uri)
	}
}

func TestRunAcknowledgedIDPersisted(t *testing.T) {
	acq := &fakeAcquirer{}
	up := &fakeUploader{location: "https://store/bucket/x.wav"}
	sub := &fakeSubmitter{ackID: "Ab3kZ9-renamed"}
	rec := &fakeRecorder{}

	res, err := newTestPipeline(acq, up, sub, rec).Run(context.Background(), "in.wav", "")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.JobID != "Ab3kZ9-renamed" || rec.jobID != "Ab3kZ9-renamed" {
		t.Errorf("acknowledged id must be the persisted one, got result %q record %q", res.JobID, rec.jobID)
	}
}

func TestRunAcquireFailure(t *testing.T) {
	acq := &fakeAcquirer{err: &acquire.AcquireError{Target: "in.wav", Err: errors.New("no such file")}}
	up := &fakeUploader{}
	sub := &fakeSubmitter{}
	rec := &fakeRecorder{}

	_, err := newTestPipeline(acq, up, sub, rec).Run(context.Background(), "in.wav", "")
	var ae *acquire.AcquireError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AcquireError, got %v", err)
	}
	if up.calls != 0 || sub.calls != 0 || rec.calls != 0 {
		t.Error("no later stage may run after an acquisition failure")
	}
}

func TestRunUploadFailure(t *testing.T) {
	acq := &fakeAcquirer{}
	up := &fakeUploader{err: &storage.WriteError{Bucket: "b", Key: "k", Err: errors.New("network error")}}
	sub := &fakeSubmitter{}
	rec := &fakeRecorder{}

	_, err := newTestPipeline(acq, up, sub, rec).Run(context.Background(), "in.wav", "")
	var we *storage.WriteError
	if !errors.As(err, &we) {
		t.Fatalf("expected WriteError, got %v", err)
	}
	if sub.calls != 0 {
		t.Error("no submission may happen after an upload failure")
	}
	if rec.calls != 0 {
		t.Error("no record may be created after an upload failure")
	}
	if _, statErr := os.Stat(acq.staged); !os.IsNotExist(statErr) {
		t.Error("staged file must be removed on the upload failure path")
	}
}

func TestRunSubmitFailure(t *testing.T) {
	acq := &fakeAcquirer{}
	up := &fakeUploader{location: "https://store/bucket/x.wav"}
	sub := &fakeSubmitter{err: &transcribe.SubmitError{JobName: "Ab3kZ9", Err: errors.New("quota exceeded")}, staged: acq}
	rec := &fakeRecorder{}

	_, err := newTestPipeline(acq, up, sub, rec).Run(context.Background(), "in.wav", "")
	var se *transcribe.SubmitError
	if !errors.As(err, &se) {
		t.Fatalf("expected SubmitError, got %v", err)
	}
	if rec.calls != 0 {
		t.Error("no record may be created after a submission failure")
	}
	if !sub.gone {
		t.Error("staged file must already be removed by the time submission runs")
	}
}

func TestRunRecordFailureSurfacesIdentifiers(t *testing.T) {
	acq := &fakeAcquirer{}
	up := &fakeUploader{location: "https://store/bucket/x.wav"}
	sub := &fakeSubmitter{}
	rec := &fakeRecorder{err: &database.PersistError{JobID: "Ab3kZ9", Err: errors.New("store unreachable")}}

	res, err := newTestPipeline(acq, up, sub, rec).Run(context.Background(), "in.wav", "")
	var pe *database.PersistError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PersistError, got %v", err)
	}
	// The job is running server-side; its identifiers must not be lost.
	if res.JobID != "Ab3kZ9" {
		t.Errorf("job id must be surfaced on record failure, got %q", res.JobID)
	}
	if res.BlobURI != "https://store/bucket/x.wav" {
		t.Errorf("blob uri must be surfaced on record failure, got %q", res.BlobURI)
	}
}

func TestRunJobNamesDoNotCollide(t *testing.T) {
	acq := &fakeAcquirer{}
	up := &fakeUploader{location: "https://store/bucket/x.wav"}
	sub := &fakeSubmitter{}
	rec := &fakeRecorder{}

	p := New(acq, up, sub, rec, "wav", discardLogger())

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		res, err := p.Run(context.Background(), "in.wav", "")
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if seen[res.JobID] {
			t.Fatalf("job id %q repeated across runs", res.JobID)
		}
		seen[res.JobID] = true
	}
}

func TestRunMessageReferencePassedThrough(t *testing.T) {
	acq := &fakeAcquirer{}
	up := &fakeUploader{location: "https://store/bucket/x.wav"}
	sub := &fakeSubmitter{}
	rec := &fakeRecorder{}

	_, err := newTestPipeline(acq, up, sub, rec).Run(context.Background(), "in.wav", "5cfe2b7d9f1b2c0017a1d2f3")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if rec.msgID != "5cfe2b7d9f1b2c0017a1d2f3" {
		t.Errorf("message reference not passed to recorder: %q", rec.msgID)
	}
}
