package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"

	"example.com/voicescribe/internal/database"
	"example.com/voicescribe/internal/transcribe"
)

var (
	store       *database.Store
	callbackURL string
	logger      *slog.Logger
)

// HandleRequest marks the correlation record for a finished transcription job
// and, when CALLBACK_URL is set, forwards the raw event to the waiting
// webhook server.
func HandleRequest(ctx context.Context, event events.CloudWatchEvent) error {
	detail, err := transcribe.ParseStateChangeDetail(event.Detail)
	if err != nil {
		return fmt.Errorf("parse event detail: %w", err)
	}
	jobID := detail.TranscriptionJobName
	if jobID == "" {
		return fmt.Errorf("event has no TranscriptionJobName")
	}

	if err := store.SetStatus(ctx, jobID, detail.TranscriptionJobStatus); err != nil {
		logger.Error("status update failed", slog.String("job_id", jobID), slog.String("error", err.Error()))
		return err
	}
	logger.Info("job state recorded",
		slog.String("job_id", jobID),
		slog.String("status", detail.TranscriptionJobStatus),
	)

	if callbackURL == "" {
		return nil
	}
	return forward(ctx, event)
}

func forward(ctx context.Context, event events.CloudWatchEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("forward to %s: %w", callbackURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("forward to %s: status %s", callbackURL, resp.Status)
	}
	return nil
}

func main() {
	logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

	sess := session.Must(session.NewSessionWithOptions(session.Options{
		SharedConfigState: session.SharedConfigEnable,
	}))
	store = database.NewStore(dynamodb.New(sess), os.Getenv("TABLE_NAME"), logger)
	callbackURL = os.Getenv("CALLBACK_URL")

	lambda.Start(HandleRequest)
}
