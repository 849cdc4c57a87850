package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/transcribeservice"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"example.com/voicescribe/internal/acquire"
	"example.com/voicescribe/internal/config"
	"example.com/voicescribe/internal/database"
	"example.com/voicescribe/internal/pipeline"
	"example.com/voicescribe/internal/storage"
	"example.com/voicescribe/internal/transcribe"
)

func main() {
	target := flag.String("target", "", "URL or local path of the source audio file (required)")
	configPath := flag.String("config", "", "optional YAML configuration file")
	messageID := flag.String("message", "", "optional message id (UUID) this recording belongs to")
	delay := flag.Int("delay", 0, "delay in milliseconds before starting")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if *target == "" {
		fmt.Fprintln(os.Stderr, "usage: scribe -target <url-or-path> [-config file] [-message uuid] [-delay ms]")
		os.Exit(2)
	}
	if *messageID != "" {
		if _, err := uuid.Parse(*messageID); err != nil {
			fmt.Fprintf(os.Stderr, "scribe: -message must be a UUID: %v\n", err)
			os.Exit(2)
		}
	}

	// .env is optional; real deployments configure through the environment.
	_ = godotenv.Load()

	settings, err := config.Load(*configPath)
	if err != nil {
		logger.Error("configuration load failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := settings.Validate(); err != nil {
		logger.Error("configuration invalid", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if *delay > 0 {
		logger.Info("delaying start", slog.Int("delay_ms", *delay))
		time.Sleep(time.Duration(*delay) * time.Millisecond)
	}

	sess := session.Must(session.NewSessionWithOptions(session.Options{
		Config:            aws.Config{Region: aws.String(settings.Region)},
		SharedConfigState: session.SharedConfigEnable,
	}))

	p := pipeline.New(
		acquire.NewSource(logger),
		storage.NewUploader(sess, settings.Bucket, logger),
		transcribe.NewSubmitter(transcribeservice.New(sess), settings.LanguageCode, settings.MediaFormat, logger),
		database.NewStore(dynamodb.New(sess), settings.Table, logger),
		settings.MediaFormat,
		logger,
	)

	res, err := p.Run(context.Background(), *target, *messageID)
	if err != nil {
		logger.Error("run failed",
			slog.String("job_name", res.JobName),
			slog.String("job_id", res.JobID),
			slog.String("s3_uri", res.BlobURI),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	fmt.Println(res.JobID)
}
