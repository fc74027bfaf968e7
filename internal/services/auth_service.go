// internal/services/auth_service.go
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/stockpics/backend/internal/config"
	"github.com/stockpics/backend/internal/i18n"
	"github.com/stockpics/backend/internal/models"
	"github.com/stockpics/backend/internal/utils"
)

type AuthService struct {
	db       *gorm.DB
	cfg      *config.Config
	tokens   *utils.TokenManager
	identity IdentityProvider
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required,min=1,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,password"`
}

type GoogleTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

type GoogleCodeRequest struct {
	Code string `json:"code" binding:"required"`
}

type AuthResponse struct {
	User        *models.User `json:"user"`
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int          `json:"expires_in"` // in seconds
}

func NewAuthService(db *gorm.DB, cfg *config.Config, tokens *utils.TokenManager, identity IdentityProvider) *AuthService {
	return &AuthService{
		db:       db,
		cfg:      cfg,
		tokens:   tokens,
		identity: identity,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// roleFor grants admin to the configured bootstrap account.
func (s *AuthService) roleFor(email string) models.UserRole {
	if admin := normalizeEmail(s.cfg.Auth.InitialAdminEmail); admin != "" && email == admin {
		return models.UserRoleAdmin
	}
	return models.UserRoleUser
}

func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	email := normalizeEmail(req.Email)

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, utils.NewInternal(err)
	}
	if count > 0 {
		return nil, utils.NewConflict(i18n.KeyAuthUserExists)
	}

	user := &models.User{
		Name:  strings.TrimSpace(req.Name),
		Email: email,
		Role:  s.roleFor(email),
	}
	if err := user.SetPassword(req.Password); err != nil {
		return nil, utils.NewInternal(err)
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, utils.NewConflict(i18n.KeyAuthUserExists)
		}
		return nil, utils.NewInternal(err)
	}

	logrus.WithFields(logrus.Fields{"user_id": user.ID, "role": user.Role}).Info("User registered")
	return s.session(user)
}

func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(req.Email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewUnauthenticated(i18n.KeyAuthInvalidCredentials, nil)
		}
		return nil, utils.NewInternal(err)
	}

	// Google-only accounts have no password hash.
	if user.PasswordHash == "" || user.CheckPassword(req.Password) != nil {
		return nil, utils.NewUnauthenticated(i18n.KeyAuthInvalidCredentials, nil)
	}

	s.touchLogin(ctx, &user)
	return s.session(&user)
}

func (s *AuthService) LoginWithGoogle(ctx context.Context, req *GoogleTokenRequest) (*AuthResponse, error) {
	identity, err := s.identity.VerifyIDToken(ctx, req.Token)
	if err != nil {
		return nil, identityError(err)
	}
	return s.loginExternal(ctx, identity)
}

func (s *AuthService) LoginWithGoogleCode(ctx context.Context, req *GoogleCodeRequest) (*AuthResponse, error) {
	identity, err := s.identity.ExchangeCode(ctx, req.Code)
	if err != nil {
		return nil, identityError(err)
	}
	return s.loginExternal(ctx, identity)
}

func identityError(err error) error {
	if errors.Is(err, ErrIdentityDisabled) {
		return utils.NewUpstreamFailure(i18n.KeyAuthGoogleDisabled, err)
	}
	if errors.Is(err, ErrIdentityUnavailable) {
		return utils.NewUpstreamFailure(i18n.KeyAuthGoogleUnavailable, err)
	}
	return utils.NewUnauthenticated(i18n.KeyAuthGoogleInvalid, err)
}

// loginExternal finds the user by Google subject, links an existing account
// with the same verified email, or creates a new one.
func (s *AuthService) loginExternal(ctx context.Context, identity *ExternalIdentity) (*AuthResponse, error) {
	email := normalizeEmail(identity.Email)
	if identity.Subject == "" || email == "" || !identity.EmailVerified {
		return nil, utils.NewUnauthenticated(i18n.KeyAuthGoogleInvalid, errors.New("unverified google identity"))
	}

	var user models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("google_id = ?", identity.Subject).First(&user).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		err = tx.Where("email = ?", email).First(&user).Error
		switch {
		case err == nil:
			updates := map[string]interface{}{"google_id": identity.Subject}
			if user.Avatar == "" && identity.Picture != "" {
				updates["avatar"] = identity.Picture
			}
			return tx.Model(&user).Updates(updates).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			subject := identity.Subject
			user = models.User{
				Name:     identity.Name,
				Email:    email,
				GoogleID: &subject,
				Avatar:   identity.Picture,
				Role:     s.roleFor(email),
			}
			if user.Name == "" {
				user.Name = strings.Split(email, "@")[0]
			}
			return tx.Create(&user).Error
		default:
			return err
		}
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// A concurrent first login created the account.
			if err := s.db.WithContext(ctx).Where("google_id = ?", identity.Subject).First(&user).Error; err != nil {
				return nil, utils.NewInternal(err)
			}
		} else {
			return nil, utils.NewInternal(err)
		}
	}

	s.touchLogin(ctx, &user)
	logrus.WithField("user_id", user.ID).Info("Google login")
	return s.session(&user)
}

func (s *AuthService) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFound(i18n.KeyUserNotFound)
		}
		return nil, utils.NewInternal(err)
	}
	return &user, nil
}

func (s *AuthService) touchLogin(ctx context.Context, user *models.User) {
	now := time.Now().UTC()
	user.LastLoginAt = &now
	if err := s.db.WithContext(ctx).Model(user).UpdateColumn("last_login_at", now).Error; err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Warn("Failed to update last login")
	}
}

func (s *AuthService) session(user *models.User) (*AuthResponse, error) {
	token, err := s.tokens.Issue(user.ID, user.Email, string(user.Role))
	if err != nil {
		return nil, utils.NewInternal(err)
	}

	return &AuthResponse{
		User:        user,
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   s.cfg.JWT.AccessTokenTTL * 3600, // Convert hours to seconds
	}, nil
}
