package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/hash"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/transport"
	jwthelp "github.com/Skotchmaster/storefront/pkg/jwt"
	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/pkg/tokens"
)

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
	minPasswordLength = 8
)

type AuthService struct {
	Repo          *repo.GormRepo
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration

	Carts    *CartService
	Events   EventPublisher
	Notifier UserNotifier
}

type LoginResult struct {
	tokens.Pair
	User     *models.User
	Advisory Advisory
}

func (s *AuthService) ttls() (time.Duration, time.Duration) {
	access, refresh := s.AccessTTL, s.RefreshTTL
	if access <= 0 {
		access = DefaultAccessTTL
	}
	if refresh <= 0 {
		refresh = DefaultRefreshTTL
	}
	return access, refresh
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: invalid email", ErrValidation)
	}
	return email, nil
}

func (s *AuthService) Register(ctx context.Context, req transport.RegisterRequest) (res Result[*models.User], err error) {
	l := logging.FromContext(ctx).With("svc", "auth.register")

	email, err := normalizeEmail(req.Email)
	if err != nil {
		return res, err
	}
	if len(req.Password) < minPasswordLength {
		return res, fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLength)
	}
	first, last := strings.TrimSpace(req.FirstName), strings.TrimSpace(req.LastName)
	if first == "" || last == "" {
		return res, fmt.Errorf("%w: firstName and lastName required", ErrValidation)
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		l.Error("register_error", "reason", "cannot hash the password", "error", err)
		return res, err
	}
	user := &models.User{
		Email:        email,
		PasswordHash: pwHash,
		FirstName:    first,
		LastName:     last,
		Phone:        strings.TrimSpace(req.Phone),
		Role:         models.RoleCustomer,
		IsActive:     true,
	}
	if err := s.Repo.CreateUser(ctx, user); err != nil {
		if repo.IsDuplicate(err) {
			return res, fmt.Errorf("%w: email already registered", ErrConflict)
		}
		return res, err
	}

	l.Info("user_registered", "user_id", user.ID)
	res.Value = user
	if s.Events != nil {
		res.Advisory.Run(ctx, "user_event", func(ctx context.Context) error {
			return s.Events.PublishEvent(ctx, TopicUserEvents, strconv.FormatUint(uint64(user.ID), 10), map[string]any{
				"type":    "user_registered",
				"user_id": user.ID,
				"email":   user.Email,
			})
		})
	}
	if s.Notifier != nil {
		res.Advisory.Run(ctx, "welcome_email", func(ctx context.Context) error {
			return s.Notifier.UserRegistered(ctx, user)
		})
	}
	return res, nil
}

// Login checks credentials, issues a token pair and folds the anonymous
// session cart, if any, into the user's cart.
func (s *AuthService) Login(ctx context.Context, req transport.LoginRequest, sessionID string) (*LoginResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login")

	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := s.Repo.GetUserByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !hash.CheckPassword(user.PasswordHash, req.Password) {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, fmt.Errorf("%w: account disabled", ErrForbidden)
	}

	pair, err := s.issue(ctx, s.Repo, user)
	if err != nil {
		return nil, err
	}

	res := &LoginResult{Pair: *pair, User: user}
	if s.Carts != nil && sessionID != "" {
		res.Advisory.Run(ctx, "cart_merge", func(ctx context.Context) error {
			return s.Carts.MergeAnonymousIntoUser(ctx, user.ID, sessionID)
		})
	}

	l.Info("user_logged_in", "user_id", user.ID)
	return res, nil
}

func (s *AuthService) issue(ctx context.Context, r *repo.GormRepo, user *models.User) (*tokens.Pair, error) {
	accessTTL, refreshTTL := s.ttls()
	now := time.Now()
	sub := strconv.FormatUint(uint64(user.ID), 10)

	accessExp := now.Add(accessTTL)
	access, err := tokens.SignAccess(string(user.Role), sub, accessExp, s.AccessSecret)
	if err != nil {
		return nil, err
	}

	jti := jwthelp.NewJTI()
	refreshExp := now.Add(refreshTTL)
	refresh, err := tokens.SignRefresh(sub, jti, refreshExp, s.RefreshSecret)
	if err != nil {
		return nil, err
	}

	if err := r.SaveRefreshToken(ctx, &models.RefreshToken{
		TokenHash: jwthelp.Sha256Hex(refresh),
		JTI:       jti,
		UserID:    user.ID,
		ExpiresAt: refreshExp.UTC(),
	}); err != nil {
		return nil, err
	}

	return &tokens.Pair{
		AccessToken:  access,
		RefreshToken: refresh,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
	}, nil
}

// RefreshTokens rotates a refresh token: the presented token is revoked and a
// new pair is issued in the same transaction.
func (s *AuthService) RefreshTokens(ctx context.Context, refreshToken string) (*tokens.Pair, error) {
	l := logging.FromContext(ctx).With("svc", "auth.refresh")

	claims, err := tokens.RefreshClaimsFromToken(refreshToken, s.RefreshSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	var pair *tokens.Pair
	err = s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		stored, err := tx.GetRefreshToken(ctx, claims.ID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: unknown refresh token", ErrUnauthorized)
		}
		if err != nil {
			return err
		}
		if stored.TokenHash != jwthelp.Sha256Hex(refreshToken) {
			return fmt.Errorf("%w: refresh token mismatch", ErrUnauthorized)
		}
		if time.Now().After(stored.ExpiresAt) {
			return fmt.Errorf("%w: refresh token expired", ErrUnauthorized)
		}

		revoked, err := tx.RevokeRefreshToken(ctx, claims.ID)
		if err != nil {
			return err
		}
		if !revoked {
			l.Warn("refresh_token_reuse", "user_id", stored.UserID)
			return fmt.Errorf("%w: refresh token already used", ErrUnauthorized)
		}

		user, err := tx.GetUserByID(ctx, stored.UserID)
		if err != nil {
			return err
		}
		if !user.IsActive {
			return fmt.Errorf("%w: account disabled", ErrUnauthorized)
		}

		pair, err = s.issue(ctx, tx, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// Logout revokes the refresh token. Unparseable tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	claims, err := tokens.RefreshClaimsFromToken(refreshToken, s.RefreshSecret)
	if err != nil {
		return nil
	}
	_, err = s.Repo.RevokeRefreshToken(ctx, claims.ID)
	return err
}

func (s *AuthService) Me(ctx context.Context, userID uint) (*models.User, error) {
	u, err := s.Repo.GetUserByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}
	return u, err
}
