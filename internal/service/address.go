package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/transport"
)

type AddressService struct {
	Repo *repo.GormRepo
}

func validateAddress(req transport.AddressRequest) error {
	var missing []string
	for name, v := range map[string]string{
		"firstName":   req.FirstName,
		"lastName":    req.LastName,
		"addressLine": req.AddressLine,
		"city":        req.City,
		"country":     req.Country,
	} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("%w: required: %s", ErrValidation, strings.Join(missing, ", "))
	}
	return nil
}

func applyAddress(a *models.Address, req transport.AddressRequest) {
	a.FirstName = strings.TrimSpace(req.FirstName)
	a.LastName = strings.TrimSpace(req.LastName)
	a.Phone = strings.TrimSpace(req.Phone)
	a.AddressLine = strings.TrimSpace(req.AddressLine)
	a.City = strings.TrimSpace(req.City)
	a.State = strings.TrimSpace(req.State)
	a.PostalCode = strings.TrimSpace(req.PostalCode)
	a.Country = strings.TrimSpace(req.Country)
}

func (s *AddressService) List(ctx context.Context, userID uint) ([]models.Address, error) {
	return s.Repo.ListAddresses(ctx, userID)
}

func (s *AddressService) Get(ctx context.Context, id, userID uint) (*models.Address, error) {
	a, err := s.Repo.GetAddressForUser(ctx, id, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: address %d", ErrNotFound, id)
	}
	return a, err
}

// Create stores a new address. The user's first address becomes the default.
func (s *AddressService) Create(ctx context.Context, userID uint, req transport.AddressRequest) (*models.Address, error) {
	if err := validateAddress(req); err != nil {
		return nil, err
	}
	a := &models.Address{UserID: userID}
	applyAddress(a, req)

	err := s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		n, err := tx.CountAddresses(ctx, userID)
		if err != nil {
			return err
		}
		a.IsDefault = req.IsDefault || n == 0
		if a.IsDefault {
			if err := tx.ClearDefaultAddress(ctx, userID); err != nil {
				return err
			}
		}
		return tx.CreateAddress(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *AddressService) Update(ctx context.Context, id, userID uint, req transport.AddressRequest) (*models.Address, error) {
	if err := validateAddress(req); err != nil {
		return nil, err
	}
	var a *models.Address
	err := s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		var err error
		a, err = tx.GetAddressForUser(ctx, id, userID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: address %d", ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		applyAddress(a, req)
		if req.IsDefault && !a.IsDefault {
			if err := tx.ClearDefaultAddress(ctx, userID); err != nil {
				return err
			}
			a.IsDefault = true
		}
		return tx.SaveAddress(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Delete removes the address. Orders keep their own copy of it. When the
// default goes, the oldest remaining address takes over.
func (s *AddressService) Delete(ctx context.Context, id, userID uint) error {
	return s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		a, err := tx.GetAddressForUser(ctx, id, userID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: address %d", ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		if err := tx.DeleteAddress(ctx, id, userID); err != nil {
			return err
		}
		if !a.IsDefault {
			return nil
		}
		next, err := tx.OldestAddress(ctx, userID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return tx.MarkDefaultAddress(ctx, next.ID, userID)
	})
}

func (s *AddressService) SetDefault(ctx context.Context, id, userID uint) (*models.Address, error) {
	err := s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		if err := tx.ClearDefaultAddress(ctx, userID); err != nil {
			return err
		}
		return tx.MarkDefaultAddress(ctx, id, userID)
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: address %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id, userID)
}
