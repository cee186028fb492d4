package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/civic-complaints/internal/apperror"
	"github.com/sakif/civic-complaints/internal/model"
	"github.com/sakif/civic-complaints/internal/repository"
)

// ReferenceService manages categories and agencies. Reads are public;
// writes happen through the admin CLI.
type ReferenceService struct {
	categories repository.CategoryRepository
	agencies   repository.AgencyRepository
	logger     *slog.Logger
}

// NewReferenceService returns a service over the two reference tables.
func NewReferenceService(categories repository.CategoryRepository, agencies repository.AgencyRepository, logger *slog.Logger) *ReferenceService {
	return &ReferenceService{categories: categories, agencies: agencies, logger: logger}
}

// Categories lists every category by name.
func (s *ReferenceService) Categories(ctx context.Context) ([]model.Category, error) {
	out, err := s.categories.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	return out, nil
}

// Agencies lists every agency by name.
func (s *ReferenceService) Agencies(ctx context.Context) ([]model.Agency, error) {
	out, err := s.agencies.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing agencies: %w", err)
	}
	return out, nil
}

// CategoryInput describes a new category.
type CategoryInput struct {
	Name        string `json:"name"        validate:"required,max=120"`
	Description string `json:"description" validate:"max=2000"`
}

// CreateCategory adds a category. A taken name is a conflict.
func (s *ReferenceService) CreateCategory(ctx context.Context, in CategoryInput) (*model.Category, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateInput(&in); err != nil {
		return nil, err
	}
	c := &model.Category{Name: in.Name, Description: optional(in.Description)}
	if err := s.categories.Create(ctx, c); err != nil {
		return nil, s.createErr("category", in.Name, err)
	}
	s.logger.Info("category created", slog.String("id", c.ID), slog.String("name", c.Name))
	return c, nil
}

// AgencyInput describes a new agency. ContactEmail is optional.
type AgencyInput struct {
	Name         string `json:"name"         validate:"required,max=160"`
	ContactEmail string `json:"contactEmail" validate:"omitempty,email,max=255"`
	Description  string `json:"description"  validate:"max=2000"`
}

// CreateAgency adds an agency. A taken name is a conflict.
func (s *ReferenceService) CreateAgency(ctx context.Context, in AgencyInput) (*model.Agency, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.ContactEmail = strings.TrimSpace(in.ContactEmail)
	if err := validateInput(&in); err != nil {
		return nil, err
	}
	a := &model.Agency{
		Name:         in.Name,
		ContactEmail: in.ContactEmail,
		Description:  strings.TrimSpace(in.Description),
	}
	if err := s.agencies.Create(ctx, a); err != nil {
		return nil, s.createErr("agency", in.Name, err)
	}
	s.logger.Info("agency created", slog.String("id", a.ID), slog.String("name", a.Name))
	return a, nil
}

func (s *ReferenceService) createErr(kind, name string, err error) error {
	if errors.Is(err, apperror.ErrConflict) {
		return &apperror.AppError{
			Err:     apperror.ErrConflict,
			Message: fmt.Sprintf("%s %q already exists", kind, name),
			Field:   "name",
		}
	}
	return fmt.Errorf("creating %s %q: %w", kind, name, err)
}
