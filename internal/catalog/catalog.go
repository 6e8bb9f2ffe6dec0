// Package catalog owns the service categories orders are filed under.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gruzztop/gruzztop/internal/apperr"
)

const activeCategoriesKey = "catalog:categories:active"

var (
	ErrNotFound  = errors.New("category not found")
	ErrDuplicate = errors.New("category already exists")
)

type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	SortOrder   int       `json:"sort_order"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

type CreateRequest struct {
	Name        string `json:"name" validate:"required,max=80"`
	Slug        string `json:"slug" validate:"required,max=80"`
	Description string `json:"description" validate:"max=500"`
	Icon        string `json:"icon" validate:"max=80"`
	SortOrder   int    `json:"sort_order"`
}

type UpdateRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=80"`
	Slug        *string `json:"slug" validate:"omitempty,min=1,max=80"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	Icon        *string `json:"icon" validate:"omitempty,max=80"`
	SortOrder   *int    `json:"sort_order"`
	IsActive    *bool   `json:"is_active"`
}

type Store interface {
	ListActive(ctx context.Context) ([]Category, error)
	Create(ctx context.Context, req CreateRequest) (*Category, error)
	Update(ctx context.Context, id string, req UpdateRequest) (*Category, error)
	Delete(ctx context.Context, id string) error
}

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value interface{}) error
	Delete(ctx context.Context, keys ...string) error
}

type Service struct {
	log   *logrus.Logger
	store Store
	cache Cache
}

func NewService(log *logrus.Logger, store Store, cache Cache) *Service {
	return &Service{log: log, store: store, cache: cache}
}

// List serves active categories from the cache and falls back to the
// database when the cache misses or is unavailable.
func (s *Service) List(ctx context.Context) ([]Category, error) {
	const op = "catalog.Service.List"
	log := s.log.WithField("op", op)

	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, activeCategoriesKey); err == nil {
			var cached []Category
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
			log.Warn("dropping undecodable cache entry")
		} else {
			log.WithError(err).Debug("category cache miss")
		}
	}

	cats, err := s.store.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if cats == nil {
		cats = []Category{}
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, activeCategoriesKey, cats); err != nil {
			log.WithError(err).Warn("failed to fill category cache")
		}
	}
	return cats, nil
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*Category, error) {
	const op = "catalog.Service.Create"

	cat, err := s.store.Create(ctx, req)
	if errors.Is(err, ErrDuplicate) {
		return nil, apperr.Conflict("category name or slug already exists")
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(ctx)
	return cat, nil
}

func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (*Category, error) {
	const op = "catalog.Service.Update"

	cat, err := s.store.Update(ctx, id, req)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil, apperr.NotFound("category not found")
	case errors.Is(err, ErrDuplicate):
		return nil, apperr.Conflict("category name or slug already exists")
	case err != nil:
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(ctx)
	return cat, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	const op = "catalog.Service.Delete"

	err := s.store.Delete(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return apperr.NotFound("category not found")
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, activeCategoriesKey); err != nil {
		s.log.WithError(err).Warn("failed to invalidate category cache")
	}
}
