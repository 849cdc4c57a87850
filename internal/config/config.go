package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Settings holds everything the pipeline needs to reach its three external
// collaborators: the S3 bucket, the Transcribe endpoint and the DynamoDB table.
type Settings struct {
	Region       string `yaml:"region"`
	Bucket       string `yaml:"bucket"`
	Table        string `yaml:"table"`
	LanguageCode string `yaml:"language_code"`
	MediaFormat  string `yaml:"media_format"`
	CallbackURL  string `yaml:"callback_url"`
	HookPort     string `yaml:"hook_port"`
}

const (
	defaultRegion       = "us-east-2"
	defaultLanguageCode = "en-US"
	defaultMediaFormat  = "wav"
	defaultHookPort     = "8051"
)

// MissingFieldError reports a required setting that was supplied neither in
// the config file nor in the environment.
type MissingFieldError struct {
	Field string
	Env   string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("configuration: missing required setting %q (set %s)", e.Field, e.Env)
}

// Load reads the optional YAML file at path, then applies environment
// overrides. An empty path skips the file entirely and configures from the
// environment alone.
func Load(path string) (Settings, error) {
	s := Settings{
		Region:       defaultRegion,
		LanguageCode: defaultLanguageCode,
		MediaFormat:  defaultMediaFormat,
		HookPort:     defaultHookPort,
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return s, fmt.Errorf("configuration: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &s); err != nil {
			return s, fmt.Errorf("configuration: parse %s: %w", path, err)
		}
	}

	s.Region = getEnv("AWS_REGION", s.Region)
	s.Bucket = getEnv("AWS_S3_BUCKET", s.Bucket)
	s.Table = getEnv("TABLE_NAME", s.Table)
	s.LanguageCode = getEnv("LANGUAGE_CODE", s.LanguageCode)
	s.MediaFormat = getEnv("MEDIA_FORMAT", s.MediaFormat)
	s.CallbackURL = getEnv("CALLBACK_URL", s.CallbackURL)
	s.HookPort = getEnv("HOOKD_PORT", s.HookPort)

	return s, nil
}

// Validate checks the settings the submission pipeline cannot run without.
func (s Settings) Validate() error {
	if s.Bucket == "" {
		return &MissingFieldError{Field: "bucket", Env: "AWS_S3_BUCKET"}
	}
	if s.Table == "" {
		return &MissingFieldError{Field: "table", Env: "TABLE_NAME"}
	}
	if s.Region == "" {
		return &MissingFieldError{Field: "region", Env: "AWS_REGION"}
	}
	if s.LanguageCode == "" {
		return &MissingFieldError{Field: "language_code", Env: "LANGUAGE_CODE"}
	}
	if s.MediaFormat == "" {
		return &MissingFieldError{Field: "media_format", Env: "MEDIA_FORMAT"}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
