package services

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/dmitrijs2005/receiptpipe/internal/common"
	"github.com/dmitrijs2005/receiptpipe/internal/logging"
	sc "github.com/dmitrijs2005/receiptpipe/internal/server/config"
	"github.com/dmitrijs2005/receiptpipe/internal/server/models"
	"github.com/google/uuid"
)

// allowedContentTypes is the set of MIME types accepted in an upload
// manifest. Receipts arrive as photos or scans; everything else is rejected
// before any authorization is minted.
var allowedContentTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/jpg":  {},
	"image/png":  {},
	"image/gif":  {},
	"image/webp": {},
}

// UploadService is the URL issuer: it validates a file manifest and mints
// short-lived, key-bound upload authorizations. Issuance has no side
// effects, so an abandoned batch costs nothing; unused authorizations
// simply expire.
type UploadService struct {
	presigner *Presigner
	config    *sc.Config
	logger    logging.Logger
}

// NewUploadService constructs the URL issuer.
func NewUploadService(presigner *Presigner, config *sc.Config, logger logging.Logger) *UploadService {
	return &UploadService{
		presigner: presigner,
		config:    config,
		logger:    logger.With("module", "upload_service"),
	}
}

// IssuedBatch is the result of one successful issuance round-trip.
type IssuedBatch struct {
	BatchID        string
	Authorizations []*models.UploadAuthorization
}

// validateManifest applies the per-batch and per-file limits. Any single
// invalid descriptor fails the whole manifest; no partial authorization
// lists are ever produced.
func (s *UploadService) validateManifest(files []models.FileDescriptor) error {
	if len(files) == 0 {
		return fmt.Errorf("%w: no files specified", common.ErrorValidation)
	}
	if len(files) > s.config.MaxFilesPerBatch {
		return fmt.Errorf("%w: too many files, maximum %d allowed", common.ErrorValidation, s.config.MaxFilesPerBatch)
	}

	for _, f := range files {
		if f.Name == "" || f.Type == "" || f.Size <= 0 {
			return fmt.Errorf("%w: each file must have name, type, and size", common.ErrorValidation)
		}
		if _, ok := allowedContentTypes[f.Type]; !ok {
			return fmt.Errorf("%w: file type %s not allowed", common.ErrorValidation, f.Type)
		}
		if f.Size > s.config.MaxFileSizeBytes {
			return fmt.Errorf("%w: file %s is too large, maximum %d bytes per file", common.ErrorValidation, f.Name, s.config.MaxFileSizeBytes)
		}
	}
	return nil
}

// IssueUploadURLs validates the manifest and mints one UploadAuthorization
// per descriptor, in manifest order. Storage keys are namespaced under the
// batch and derived from a random object name preserving the original
// extension, so a key is never reissued.
func (s *UploadService) IssueUploadURLs(ctx context.Context, batchID string, files []models.FileDescriptor) (*IssuedBatch, error) {

	if err := s.validateManifest(files); err != nil {
		return nil, err
	}

	if batchID == "" {
		batchID = uuid.NewString()
	}

	expiresAt := time.Now().UTC().Add(s.config.UploadURLTTL)

	authorizations := make([]*models.UploadAuthorization, 0, len(files))
	for _, f := range files {
		randomName, err := common.MakeRandHexString(32)
		if err != nil {
			return nil, fmt.Errorf("generating object name: %w", err)
		}
		fileName := randomName + path.Ext(f.Name)
		storageKey := fmt.Sprintf("uploads/%s/%s", batchID, fileName)

		uploadURL, err := s.presigner.PresignedPutURL(ctx, storageKey, f.Type, f.Size)
		if err != nil {
			return nil, fmt.Errorf("presigning %s: %w", f.Name, err)
		}

		authorizations = append(authorizations, &models.UploadAuthorization{
			OriginalName: f.Name,
			FileName:     fileName,
			StorageKey:   storageKey,
			UploadURL:    uploadURL,
			ContentType:  f.Type,
			Size:         f.Size,
			ExpiresAt:    expiresAt,
		})
	}

	s.logger.Info(ctx, "issued upload urls", "batch_id", batchID, "files", len(authorizations))

	return &IssuedBatch{BatchID: batchID, Authorizations: authorizations}, nil
}
