package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/joho/godotenv"

	"example.com/voicescribe/internal/config"
	"example.com/voicescribe/internal/database"
	"example.com/voicescribe/internal/hook"
)

// hookd receives transcription job state change callbacks and resolves them
// to correlation records by job id.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	_ = godotenv.Load()

	settings, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		logger.Error("configuration load failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if settings.Table == "" {
		err := &config.MissingFieldError{Field: "table", Env: "TABLE_NAME"}
		logger.Error("configuration invalid", slog.String("error", err.Error()))
		os.Exit(1)
	}

	sess := session.Must(session.NewSessionWithOptions(session.Options{
		Config:            aws.Config{Region: aws.String(settings.Region)},
		SharedConfigState: session.SharedConfigEnable,
	}))
	store := database.NewStore(dynamodb.New(sess), settings.Table, logger)

	handler := hook.NewHandler(store, logger)
	addr := ":" + settings.HookPort
	logger.Info("hookd listening", slog.String("addr", addr), slog.String("table", settings.Table))
	if err := http.ListenAndServe(addr, handler.Router()); err != nil {
		logger.Error("server stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
