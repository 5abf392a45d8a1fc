package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomengsanchez/asset-manager-api/internal/models"
	"github.com/tomengsanchez/asset-manager-api/pkg/storage"
)

func newAttachmentFixture(t *testing.T) (*AttachmentService, *mockAttachments, *storage.LocalStorage) {
	t.Helper()
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	attachments := &mockAttachments{}
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	svc := NewAttachmentService(attachments, files, signer, "/api/v1", nil)
	return svc, attachments, files
}

func TestAttachmentServiceSignedURLRoundTrip(t *testing.T) {
	svc, attachments, files := newAttachmentFixture(t)

	path, err := files.SaveStream("notes/1/receipt.pdf", strings.NewReader("pdf-bytes"))
	require.NoError(t, err)
	require.NoError(t, attachments.Create(context.Background(), &models.Attachment{
		RecordID: 1,
		FileName: "receipt.pdf",
		FilePath: path,
		MimeType: "application/pdf",
	}))

	url, expiresAt, err := svc.SignedURL(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/api/v1/attachments/download/"))
	assert.True(t, expiresAt.After(time.Now()))

	token := strings.TrimPrefix(url, "/api/v1/attachments/download/")
	att, file, err := svc.Resolve(context.Background(), token)
	require.NoError(t, err)
	defer file.Close()
	assert.Equal(t, "receipt.pdf", att.FileName)
	content, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, "pdf-bytes", string(content))
}

func TestAttachmentServiceSignedURLUnknownAttachment(t *testing.T) {
	svc, _, _ := newAttachmentFixture(t)

	_, _, err := svc.SignedURL(context.Background(), 99)
	require.Error(t, err)
}

func TestAttachmentServiceResolveRejectsTamperedToken(t *testing.T) {
	svc, attachments, files := newAttachmentFixture(t)

	path, err := files.SaveStream("notes/1/photo.png", strings.NewReader("png"))
	require.NoError(t, err)
	require.NoError(t, attachments.Create(context.Background(), &models.Attachment{
		RecordID: 1,
		FileName: "photo.png",
		FilePath: path,
		MimeType: "image/png",
	}))

	url, _, err := svc.SignedURL(context.Background(), 1)
	require.NoError(t, err)
	token := strings.TrimPrefix(url, "/api/v1/attachments/download/")

	_, _, err = svc.Resolve(context.Background(), token+"x")
	require.Error(t, err)
}
