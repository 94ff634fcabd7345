package services

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/accountkeeper/internal/common"
	"github.com/dmitrijs2005/accountkeeper/internal/filex"
	"github.com/dmitrijs2005/accountkeeper/internal/logging"
)

// MaxUploadBytes is the first size rejected by UploadService: sizes are
// compared in whole decimal megabytes, so anything from 4,000,000 bytes up fails.
const MaxUploadBytes = 4 * 1_000_000

// ErrFileTooLarge is a common.ErrorBadRequest.
var ErrFileTooLarge = fmt.Errorf("%w: file size must not exceed 4MB", common.ErrorBadRequest)

// Uploader stores a local file and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, path string) (string, error)
}

// UploadService stages uploaded bytes on disk and hands them to an Uploader.
type UploadService struct {
	uploader Uploader
	dir      string
	logger   logging.Logger
	events   EventRecorder

	// cleanup runs after Upload returns; tests replace it to wait on it.
	cleanup func(path string)
}

func NewUploadService(uploader Uploader, dir string, logger logging.Logger, events EventRecorder) *UploadService {
	if events == nil {
		events = noopRecorder{}
	}
	s := &UploadService{
		uploader: uploader,
		dir:      dir,
		logger:   logger.With("module", "uploads"),
		events:   events,
	}
	s.cleanup = s.removeStaged
	return s
}

// Upload stores content and returns its URL. Provider failures come back as
// *common.UpstreamError. The staged copy is removed in the background
// whatever the outcome.
func (s *UploadService) Upload(ctx context.Context, content []byte) (string, error) {
	if len(content) >= MaxUploadBytes {
		s.events.Record("upload", "too_large")
		return "", ErrFileTooLarge
	}

	dir, err := filex.EnsureSubdDir(s.dir)
	if err != nil {
		return "", fmt.Errorf("error preparing upload dir: %w", err)
	}

	name, err := common.MakeRandHexString(8)
	if err != nil {
		return "", fmt.Errorf("error naming upload: %w", err)
	}

	path, err := filex.StageFile(dir, name+".png", content)
	if err != nil {
		return "", fmt.Errorf("error staging upload: %w", err)
	}
	defer func() { go s.cleanup(path) }()

	url, err := s.uploader.Upload(ctx, path)
	if err != nil {
		s.events.Record("upload", "upstream_failed")
		s.logger.Error(ctx, "upload failed", "error", err)
		return "", common.NewUpstreamError("File upload failed", err)
	}

	s.events.Record("upload", "success")
	return url, nil
}

func (s *UploadService) removeStaged(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn(context.Background(), "staged upload not removed", "path", path, "error", err)
	}
}
