package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/accountkeeper/internal/common"
	"github.com/dmitrijs2005/accountkeeper/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUploader struct {
	path    string
	content []byte
	url     string
	err     error
}

func (u *fakeUploader) Upload(ctx context.Context, path string) (string, error) {
	u.path = path
	u.content, _ = os.ReadFile(path)
	if u.err != nil {
		return "", u.err
	}
	return u.url, nil
}

// newUploadService returns a service whose cleanup signals done.
func newUploadService(t *testing.T, up Uploader) (*UploadService, string, <-chan string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "static", "images")
	events := &fakeEvents{}
	s := NewUploadService(up, dir, logging.NewSlogLogger(nil), events)

	done := make(chan string, 1)
	remove := s.cleanup
	s.cleanup = func(path string) {
		remove(path)
		done <- path
	}
	return s, dir, done
}

func waitCleanup(t *testing.T, done <-chan string) string {
	t.Helper()
	select {
	case p := <-done:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("cleanup did not run")
		return ""
	}
}

func TestUpload_Success(t *testing.T) {
	up := &fakeUploader{url: "http://127.0.0.1:9000/images/uploads/x.png"}
	s, dir, done := newUploadService(t, up)

	url, err := s.Upload(ctx, []byte("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, up.url, url)

	assert.Equal(t, dir, filepath.Dir(up.path))
	assert.Regexp(t, `^[0-9a-f]{16}\.png$`, filepath.Base(up.path))
	assert.Equal(t, []byte("png-bytes"), up.content)

	staged := waitCleanup(t, done)
	assert.Equal(t, up.path, staged)
	_, err = os.Stat(staged)
	assert.True(t, os.IsNotExist(err), "staged file is removed")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "only the staged file existed and it is gone")
}

func TestUpload_SizeLimit(t *testing.T) {
	up := &fakeUploader{url: "u"}
	s, _, _ := newUploadService(t, up)

	_, err := s.Upload(ctx, make([]byte, MaxUploadBytes))
	assert.ErrorIs(t, err, ErrFileTooLarge)
	assert.ErrorIs(t, err, common.ErrorBadRequest)
	assert.Empty(t, up.path, "oversize content never reaches the provider")

	s2, _, done := newUploadService(t, up)
	_, err = s2.Upload(ctx, make([]byte, MaxUploadBytes-1))
	assert.NoError(t, err)
	waitCleanup(t, done)
}

func TestUpload_ProviderFailure(t *testing.T) {
	up := &fakeUploader{err: errors.New("AccessDenied: bucket policy")}
	s, _, done := newUploadService(t, up)

	_, err := s.Upload(ctx, []byte("png-bytes"))
	var ue *common.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "File upload failed", ue.Message)
	assert.Equal(t, "AccessDenied: bucket policy", ue.Meta)

	staged := waitCleanup(t, done)
	_, statErr := os.Stat(staged)
	assert.True(t, os.IsNotExist(statErr), "cleanup runs on failure too")
}

func TestUpload_DirError(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	s := NewUploadService(&fakeUploader{}, filepath.Join(blocker, "sub"), logging.NewSlogLogger(nil), nil)
	_, err := s.Upload(ctx, []byte("x"))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "upload dir"))
}
