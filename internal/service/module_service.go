package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/univlab/campus-api/internal/models"
	appErrors "github.com/univlab/campus-api/pkg/errors"
)

type moduleRepository interface {
	FindByID(ctx context.Context, id string) (*models.Module, error)
	FindByCode(ctx context.Context, code string) (*models.Module, error)
	List(ctx context.Context, filter models.ModuleFilter) ([]models.Module, int, error)
	Create(ctx context.Context, module *models.Module) error
	Update(ctx context.Context, module *models.Module) error
	Delete(ctx context.Context, id string) error
}

type professorReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// CreateModuleRequest registers a teaching unit.
type CreateModuleRequest struct {
	Code        string `json:"code" validate:"required,max=20"`
	Name        string `json:"name" validate:"required,max=200"`
	Semester    int    `json:"semester" validate:"required,oneof=1 2"`
	Coefficient int    `json:"coefficient" validate:"required,min=1,max=10"`
	Level       string `json:"level" validate:"required"`
	ProfessorID string `json:"professor_id" validate:"required"`
}

// UpdateModuleRequest mutates a teaching unit.
type UpdateModuleRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Semester    int    `json:"semester" validate:"required,oneof=1 2"`
	Coefficient int    `json:"coefficient" validate:"required,min=1,max=10"`
	Level       string `json:"level" validate:"required"`
	ProfessorID string `json:"professor_id" validate:"required"`
}

// ModuleService manages teaching units.
type ModuleService struct {
	modules    moduleRepository
	professors professorReader
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewModuleService constructs ModuleService.
func NewModuleService(modules moduleRepository, professors professorReader, validate *validator.Validate, logger *zap.Logger) *ModuleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModuleService{modules: modules, professors: professors, validator: validate, logger: logger}
}

// Create registers a module after checking the professor assignment.
func (s *ModuleService) Create(ctx context.Context, req CreateModuleRequest) (*models.Module, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid module payload")
	}
	if err := s.checkProfessor(ctx, req.ProfessorID); err != nil {
		return nil, err
	}
	if existing, err := s.modules.FindByCode(ctx, req.Code); err == nil && existing != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "module code already in use")
	} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check module code")
	}

	now := time.Now().UTC()
	module := &models.Module{
		ID:          uuid.NewString(),
		Code:        req.Code,
		Name:        req.Name,
		Semester:    req.Semester,
		Coefficient: req.Coefficient,
		Level:       req.Level,
		ProfessorID: req.ProfessorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.modules.Create(ctx, module); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "module code already in use")
	}
	return module, nil
}

// Get returns a module by ID.
func (s *ModuleService) Get(ctx context.Context, id string) (*models.Module, error) {
	module, err := s.modules.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "module not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load module")
	}
	return module, nil
}

// List returns modules matching the filter.
func (s *ModuleService) List(ctx context.Context, filter models.ModuleFilter) ([]models.Module, int, error) {
	modules, total, err := s.modules.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list modules")
	}
	return modules, total, nil
}

// Update mutates a module.
func (s *ModuleService) Update(ctx context.Context, id string, req UpdateModuleRequest) (*models.Module, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid module payload")
	}

	module, err := s.modules.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "module not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load module")
	}
	if err := s.checkProfessor(ctx, req.ProfessorID); err != nil {
		return nil, err
	}

	module.Name = req.Name
	module.Semester = req.Semester
	module.Coefficient = req.Coefficient
	module.Level = req.Level
	module.ProfessorID = req.ProfessorID
	module.UpdatedAt = time.Now().UTC()

	if err := s.modules.Update(ctx, module); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update module")
	}
	return module, nil
}

// Delete removes a module.
func (s *ModuleService) Delete(ctx context.Context, id string) error {
	if _, err := s.modules.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "module not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load module")
	}
	if err := s.modules.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete module")
	}
	return nil
}

func (s *ModuleService) checkProfessor(ctx context.Context, professorID string) error {
	professor, err := s.professors.FindByID(ctx, professorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "professor not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load professor")
	}
	if professor.Role != models.RoleProfessor {
		return appErrors.Clone(appErrors.ErrValidation, "assigned user is not a professor")
	}
	return nil
}
