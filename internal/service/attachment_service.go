package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/tomengsanchez/asset-manager-api/internal/models"
	appErrors "github.com/tomengsanchez/asset-manager-api/pkg/errors"
	"github.com/tomengsanchez/asset-manager-api/pkg/storage"
)

type attachmentFileOpener interface {
	Open(filename string) (*os.File, error)
}

// AttachmentService hands out signed, expiring download URLs for note
// and image attachments and resolves them back to files.
type AttachmentService struct {
	attachments attachmentStore
	files       attachmentFileOpener
	signer      *storage.SignedURLSigner
	apiPrefix   string
	logger      *zap.Logger
}

// NewAttachmentService constructs the attachment service.
func NewAttachmentService(attachments attachmentStore, files attachmentFileOpener, signer *storage.SignedURLSigner, apiPrefix string, logger *zap.Logger) *AttachmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttachmentService{
		attachments: attachments,
		files:       files,
		signer:      signer,
		apiPrefix:   apiPrefix,
		logger:      logger,
	}
}

// SignedURL returns a download URL for the attachment, valid until the
// returned expiry.
func (s *AttachmentService) SignedURL(ctx context.Context, id int64) (string, time.Time, error) {
	att, err := s.attachments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", time.Time{}, appErrors.Clone(appErrors.ErrNotFound, "attachment not found")
		}
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attachment")
	}

	token, expiresAt, err := s.signer.Generate(strconv.FormatInt(att.ID, 10), att.FilePath)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign attachment URL")
	}
	return fmt.Sprintf("%s/attachments/download/%s", s.apiPrefix, token), expiresAt, nil
}

// Resolve validates a download token and returns the attachment record
// together with an open file handle. The caller closes the file.
func (s *AttachmentService) Resolve(ctx context.Context, token string) (*models.Attachment, *os.File, error) {
	resourceID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token")
	}

	id, err := strconv.ParseInt(resourceID, 10, 64)
	if err != nil {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid download token")
	}

	att, err := s.attachments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "attachment not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attachment")
	}

	file, err := s.files.Open(relPath)
	if err != nil {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "attachment file no longer available")
	}
	return att, file, nil
}
