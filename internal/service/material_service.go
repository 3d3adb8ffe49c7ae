package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/univlab/campus-api/internal/models"
	appErrors "github.com/univlab/campus-api/pkg/errors"
	"github.com/univlab/campus-api/pkg/storage"
)

type materialRepo interface {
	FindByID(ctx context.Context, id string) (*models.Material, error)
	ListByModule(ctx context.Context, moduleID string) ([]models.Material, error)
	Create(ctx context.Context, material *models.Material) error
	Delete(ctx context.Context, id string) error
}

// UploadMaterialRequest describes an incoming course document.
type UploadMaterialRequest struct {
	ModuleID  string
	Title     string
	FileName  string
	MIMEType  string
	SizeBytes int64
	Content   io.Reader
}

// MaterialConfig bounds uploads.
type MaterialConfig struct {
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// MaterialService stores course documents and hands out signed
// download links.
type MaterialService struct {
	materials   materialRepo
	modules     moduleReader
	students    studentReader
	enrollments enrollmentChecker
	fanout      enrollmentFanout
	dispatcher  *NotificationService
	store       *storage.LocalStorage
	signer      *storage.SignedURLSigner
	logger      *zap.Logger
	config      MaterialConfig
}

// NewMaterialService constructs MaterialService.
func NewMaterialService(materials materialRepo, modules moduleReader, students studentReader, enrollments enrollmentChecker, fanout enrollmentFanout, dispatcher *NotificationService, store *storage.LocalStorage, signer *storage.SignedURLSigner, logger *zap.Logger, config MaterialConfig) *MaterialService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MaterialService{
		materials:   materials,
		modules:     modules,
		students:    students,
		enrollments: enrollments,
		fanout:      fanout,
		dispatcher:  dispatcher,
		store:       store,
		signer:      signer,
		logger:      logger,
		config:      config,
	}
}

// Upload stores a document for a module and notifies enrolled students.
func (s *MaterialService) Upload(ctx context.Context, actor *models.JWTClaims, req UploadMaterialRequest) (*models.Material, error) {
	if req.ModuleID == "" || req.Title == "" || req.FileName == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "module_id, title and file are required")
	}
	if s.config.MaxFileSizeBytes > 0 && req.SizeBytes > s.config.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds the %d byte limit", s.config.MaxFileSizeBytes))
	}
	if !s.mimeAllowed(req.MIMEType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file type not allowed")
	}

	module, err := s.modules.FindByID(ctx, req.ModuleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "module not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load module")
	}
	if actor.Role == models.RoleProfessor && module.ProfessorID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "module belongs to another professor")
	}

	id := uuid.NewString()
	relPath := filepath.Join("materials", module.ID, id+filepath.Ext(req.FileName))
	if _, err := s.store.SaveStream(relPath, req.Content); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
	}

	material := &models.Material{
		ID:         id,
		ModuleID:   module.ID,
		Title:      req.Title,
		FileName:   req.FileName,
		FilePath:   relPath,
		MIMEType:   req.MIMEType,
		SizeBytes:  req.SizeBytes,
		UploadedBy: actor.UserID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.materials.Create(ctx, material); err != nil {
		if removeErr := s.store.Delete(relPath); removeErr != nil {
			s.logger.Warn("orphaned upload left on disk", zap.Error(removeErr), zap.String("path", relPath))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store material")
	}

	if recipients, err := s.fanout.ListStudentIDsByModule(ctx, module.ID); err != nil {
		s.logger.Warn("material fan-out skipped: recipient lookup failed", zap.Error(err), zap.String("module_id", module.ID))
	} else {
		s.dispatcher.DispatchAsync(DispatchRequest{
			Recipients: recipients,
			SenderID:   &actor.UserID,
			Title:      "New course material",
			Message:    fmt.Sprintf("%q is now available for %s.", req.Title, module.Name),
			Type:       models.NotificationTypeGeneral,
			Related:    &models.RelatedRef{Model: "material", ID: material.ID},
		})
	}

	return material, nil
}

// ListByModule returns the documents of a module visible to the actor.
func (s *MaterialService) ListByModule(ctx context.Context, actor *models.JWTClaims, moduleID string) ([]models.Material, error) {
	if err := s.authorizeModuleAccess(ctx, actor, moduleID); err != nil {
		return nil, err
	}
	materials, err := s.materials.ListByModule(ctx, moduleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list materials")
	}
	return materials, nil
}

// DownloadLink issues a short-lived signed URL for a stored material.
func (s *MaterialService) DownloadLink(ctx context.Context, actor *models.JWTClaims, materialID string) (*models.MaterialDownload, error) {
	material, err := s.materials.FindByID(ctx, materialID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "material not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load material")
	}
	if err := s.authorizeModuleAccess(ctx, actor, material.ModuleID); err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(material.ID, material.FilePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}
	return &models.MaterialDownload{
		MaterialID: material.ID,
		URL:        fmt.Sprintf("/api/v1/files/%s", token),
		ExpiresAt:  expiresAt,
	}, nil
}

// OpenSigned resolves a signed token to the underlying file.
func (s *MaterialService) OpenSigned(ctx context.Context, token string) (*models.Material, *os.File, error) {
	fileID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid or expired download link")
	}
	material, err := s.materials.FindByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "material not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load material")
	}
	if material.FilePath != relPath {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "download link does not match stored file")
	}
	f, err := s.store.Open(relPath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "stored file missing")
	}
	return material, f, nil
}

// Delete removes a material and its file.
func (s *MaterialService) Delete(ctx context.Context, actor *models.JWTClaims, materialID string) error {
	material, err := s.materials.FindByID(ctx, materialID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "material not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load material")
	}
	if actor.Role == models.RoleProfessor && material.UploadedBy != actor.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "material belongs to another professor")
	}
	if err := s.materials.Delete(ctx, materialID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete material")
	}
	if err := s.store.Delete(material.FilePath); err != nil {
		s.logger.Warn("failed to remove stored file", zap.Error(err), zap.String("path", material.FilePath))
	}
	return nil
}

func (s *MaterialService) authorizeModuleAccess(ctx context.Context, actor *models.JWTClaims, moduleID string) error {
	switch actor.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleProfessor:
		module, err := s.modules.FindByID(ctx, moduleID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "module not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load module")
		}
		if module.ProfessorID != actor.UserID {
			return appErrors.Clone(appErrors.ErrForbidden, "module belongs to another professor")
		}
		return nil
	case models.RoleStudent:
		student, err := s.students.FindByUserID(ctx, actor.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
		}
		enrolled, err := s.enrollments.IsEnrolled(ctx, student.ID, moduleID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
		}
		if !enrolled {
			return appErrors.Clone(appErrors.ErrForbidden, "not enrolled in module")
		}
		return nil
	default:
		return appErrors.Clone(appErrors.ErrForbidden, "access denied")
	}
}

func (s *MaterialService) mimeAllowed(mime string) bool {
	if len(s.config.AllowedMIMEs) == 0 {
		return true
	}
	for _, allowed := range s.config.AllowedMIMEs {
		if strings.EqualFold(allowed, mime) {
			return true
		}
	}
	return false
}
