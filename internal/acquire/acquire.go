package acquire

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// AcquireError reports a failure to obtain the source audio bytes, before
// anything has been uploaded or submitted.
type AcquireError struct {
	Target string
	Err    error
}

func (e *AcquireError) Error() string {
	return fmt.Sprintf("acquire %s: %v", e.Target, e.Err)
}

func (e *AcquireError) Unwrap() error { return e.Err }

// Workspace is a per-run staging directory. Everything acquired for one
// pipeline run lives inside it and Remove deletes it wholesale.
type Workspace struct {
	dir string
}

// NewWorkspace creates the staging directory for one run. The token keeps
// concurrent runs from colliding on disk.
func NewWorkspace(token string) (*Workspace, error) {
	dir, err := os.MkdirTemp("", "voicescribe-"+token+"-")
	if err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	return &Workspace{dir: dir}, nil
}

// Path returns the location of name inside the workspace.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.dir, name)
}

// Remove deletes the workspace and all staged files. Safe to call more than
// once.
func (w *Workspace) Remove() error {
	return os.RemoveAll(w.dir)
}

// Source stages audio from a remote URL or a local path into a workspace.
type Source struct {
	client *http.Client
	logger *slog.Logger
}

func NewSource(logger *slog.Logger) *Source {
	return &Source{
		client: &http.Client{Timeout: 60 * time.Second},
		logger: logger,
	}
}

// Acquire copies the audio at target into ws under name and returns the
// staged file's path. An http(s) target is downloaded; anything else is
// treated as a local file path.
func (s *Source) Acquire(ctx context.Context, target string, ws *Workspace, name string) (string, error) {
	out := ws.Path(name)

	var err error
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		s.logger.Info("downloading source audio", slog.String("target", target), slog.String("staged", out))
		err = s.download(ctx, target, out)
	} else {
		s.logger.Info("copying local source audio", slog.String("target", target), slog.String("staged", out))
		err = copyFile(target, out)
	}
	if err != nil {
		return "", &AcquireError{Target: target, Err: err}
	}
	return out, nil
}

func (s *Source) download(ctx context.Context, url, out string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()

	n, err := io.Copy(f, resp.Body)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("empty response body")
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return fmt.Errorf("source file is empty")
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
