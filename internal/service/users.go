package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/transport"
	"github.com/Skotchmaster/storefront/internal/util"
)

type UserService struct {
	Repo *repo.GormRepo
}

func (s *UserService) List(ctx context.Context, page, size int) (*transport.UserListResponse, error) {
	offset, limit := util.Calculate(page, size)
	total, users, err := s.Repo.ListUsers(ctx, offset, limit)
	if err != nil {
		return nil, err
	}
	return &transport.UserListResponse{Users: users, Pagination: util.NewPagination(page, size, total)}, nil
}

func (s *UserService) SetRole(ctx context.Context, id uint, role models.Role) (*models.User, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}
	if err := s.Repo.UpdateUserFields(ctx, id, map[string]any{"role": role}); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %d", ErrNotFound, id)
		}
		return nil, err
	}
	return s.Repo.GetUserByID(ctx, id)
}

// SetActive toggles the account; deactivation also revokes its refresh tokens.
func (s *UserService) SetActive(ctx context.Context, id uint, active bool) (*models.User, error) {
	err := s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		if err := tx.UpdateUserFields(ctx, id, map[string]any{"is_active": active}); err != nil {
			return err
		}
		if !active {
			return tx.RevokeUserRefreshTokens(ctx, id)
		}
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return s.Repo.GetUserByID(ctx, id)
}
