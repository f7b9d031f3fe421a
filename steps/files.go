package steps

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/simon020286/go-autopilot/builder"
	"github.com/simon020286/go-autopilot/logging"
	"github.com/simon020286/go-autopilot/models"
	"go.uber.org/zap"
)

// FilesStep downloads the files attached to the submissions in its
// context into <directory>/<userid>/<filename>.
type FilesStep struct {
	*models.Base
	directory string
}

func (s *FilesStep) Run(ctx context.Context) error {
	logger := logging.FromContext(ctx)

	if s.Session() == nil {
		return models.ErrCapability("file download")
	}
	source, err := s.ContextValue("submissions")
	if err != nil {
		return err
	}

	files := []any{}
	for _, raw := range asList(source["submissions"]) {
		sub := asMap(raw)
		userID := asString(sub["userid"])
		if userID == "" {
			continue
		}
		for _, f := range asList(asMap(sub["data"])["files"]) {
			file := asMap(f)
			fileURL := asString(file["fileurl"])
			name := filepath.Base(asString(file["filename"]))
			if fileURL == "" || name == "." || name == string(filepath.Separator) {
				continue
			}

			dir := filepath.Join(s.directory, userID)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create %s: %w", dir, err)
			}
			path := filepath.Join(dir, name)
			if err := s.download(ctx, fileURL, path); err != nil {
				return err
			}

			logger.Debug("file downloaded", zap.String("path", path))
			files = append(files, map[string]any{
				"userid":   sub["userid"],
				"filename": name,
				"path":     path,
				"fileurl":  fileURL,
			})
		}
	}

	logger.Info("submission files downloaded", zap.Int("count", len(files)), zap.String("directory", s.directory))
	s.Expose("files", files)
	return nil
}

func (s *FilesStep) download(ctx context.Context, fileURL, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := s.Session().Download(ctx, fileURL, f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

func init() {
	builder.RegisterStepType("Files", func(cfg models.StepConfig) (models.Step, error) {
		base, err := models.NewBase(cfg, models.Requirements{Params: []string{"directory"}})
		if err != nil {
			return nil, err
		}
		return &FilesStep{Base: base, directory: base.StringParam("directory", "")}, nil
	})
}
