package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/doclearn/doclearn/internal/common"
	"github.com/doclearn/doclearn/internal/dbx"
	"github.com/doclearn/doclearn/internal/server/auth"
	"github.com/doclearn/doclearn/internal/server/models"
	"github.com/doclearn/doclearn/internal/server/verification"
)

const minPasswordLength = 8

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// CodeStore issues and consumes email verification codes.
type CodeStore interface {
	Issue(ctx context.Context, userID string) (string, error)
	Consume(ctx context.Context, userID, code string) error
}

// TokenSettings configures token issuance.
type TokenSettings struct {
	Secret          []byte
	AccessValidity  time.Duration
	RefreshValidity time.Duration
}

type RegisterInput struct {
	Email      string
	Password   string
	FirstName  string
	LastName   string
	MiddleName string
}

// UserService handles registration, email verification, login and
// refresh-token rotation.
type UserService struct {
	Deps
	codes  CodeStore
	mailer Mailer
	tokens TokenSettings
}

func NewUserService(d Deps, codes CodeStore, mailer Mailer, tokens TokenSettings) *UserService {
	d = d.withDefaults()
	d.Logger = d.Logger.With("module", "user_service")
	return &UserService{Deps: d, codes: codes, mailer: mailer, tokens: tokens}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateRegistration(in RegisterInput) error {
	if _, err := mail.ParseAddress(in.Email); err != nil || !strings.Contains(in.Email, "@") {
		return common.Validation("email is invalid", "email")
	}
	if utf8.RuneCountInString(in.Password) < minPasswordLength {
		return common.Validation(fmt.Sprintf("password must contain at least %d characters", minPasswordLength), "password")
	}
	if utf8.RuneCountInString(strings.TrimSpace(in.FirstName)) < 2 {
		return common.Validation("firstName must contain at least 2 characters", "firstName")
	}
	if utf8.RuneCountInString(strings.TrimSpace(in.LastName)) < 2 {
		return common.Validation("lastName must contain at least 2 characters", "lastName")
	}
	return nil
}

// Register creates an unverified user and sends a verification code.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.Profile, error) {
	in.Email = normalizeEmail(in.Email)
	if err := validateRegistration(in); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	p, err := s.Repos.Profiles(s.DB).Create(ctx, &models.Profile{
		ID:           uuid.NewString(),
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         common.RoleUser,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		MiddleName:   strings.TrimSpace(in.MiddleName),
	})
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.Conflict("email is already registered")
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	if err := s.sendCode(ctx, p); err != nil {
		// the account exists; the user can ask for another code
		s.Logger.Error(ctx, "verification code not delivered", "user_id", p.ID, "error", err)
	}
	s.Logger.Info(ctx, "user registered", "user_id", p.ID)
	return p, nil
}

func (s *UserService) sendCode(ctx context.Context, p *models.Profile) error {
	code, err := s.codes.Issue(ctx, p.ID)
	if err != nil {
		return err
	}
	return s.mailer.SendVerificationCode(ctx, p.Email, code)
}

// ResendCode issues a fresh code for an unverified account.
func (s *UserService) ResendCode(ctx context.Context, email string) error {
	p, err := s.Repos.Profiles(s.DB).GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return userNotFound(err)
	}
	if p.IsEmailVerified {
		return common.Conflict("email is already verified")
	}
	return s.sendCode(ctx, p)
}

// VerifyEmail consumes code and marks the email verified.
func (s *UserService) VerifyEmail(ctx context.Context, email, code string) error {
	repo := s.Repos.Profiles(s.DB)

	p, err := repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return userNotFound(err)
	}
	if p.IsEmailVerified {
		return nil
	}

	switch err := s.codes.Consume(ctx, p.ID, strings.TrimSpace(code)); {
	case errors.Is(err, verification.ErrCodeMismatch):
		return common.BadRequest("verification code is incorrect")
	case errors.Is(err, verification.ErrCodeExpired):
		return common.BadRequest("verification code has expired, request a new one")
	case errors.Is(err, verification.ErrTooManyAttempts):
		return common.BadRequest("too many attempts, request a new code")
	case err != nil:
		return err
	}

	return userNotFound(repo.MarkEmailVerified(ctx, p.ID))
}

// Login checks credentials and issues a token pair. Unknown emails and
// wrong passwords both yield common.ErrorUnauthorized.
func (s *UserService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	p, err := s.Repos.Profiles(s.DB).GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}

	if bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)) != nil {
		return nil, common.ErrorUnauthorized
	}
	if !p.IsEmailVerified {
		return nil, common.Forbidden("email is not verified")
	}
	if p.IsBanned {
		return nil, common.Forbidden("account is banned")
	}

	var pair *TokenPair
	err = dbx.WithTx(ctx, s.DB, nil, func(ctx context.Context, tx dbx.DBTX) error {
		pair, err = s.generateTokenPair(ctx, tx, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// RefreshToken rotates refreshToken: the old token is deleted and a new
// pair is issued in the same transaction.
func (s *UserService) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	var pair *TokenPair

	err := dbx.WithTx(ctx, s.DB, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.Repos.RefreshTokens(tx)

		token, err := repo.Find(ctx, refreshToken)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrorUnauthorized
			}
			return fmt.Errorf("error searching refresh token: %w", err)
		}
		if token.Expires.Before(time.Now()) {
			return common.ErrRefreshTokenExpired
		}
		if err := repo.Delete(ctx, refreshToken); err != nil {
			return fmt.Errorf("error deleting refresh token: %w", err)
		}

		p, err := s.Repos.Profiles(tx).GetByID(ctx, token.UserID)
		if err != nil {
			return userNotFound(err)
		}
		if p.IsBanned {
			return common.Forbidden("account is banned")
		}

		pair, err = s.generateTokenPair(ctx, tx, p)
		if err != nil {
			return fmt.Errorf("error generating token pair: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// Logout revokes a refresh token. Unknown tokens are ignored.
func (s *UserService) Logout(ctx context.Context, refreshToken string) error {
	return s.Repos.RefreshTokens(s.DB).Delete(ctx, refreshToken)
}

// PurgeExpiredTokens removes refresh tokens past their expiry.
func (s *UserService) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	n, err := s.Repos.RefreshTokens(s.DB).DeleteExpired(ctx, time.Now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.Logger.Info(ctx, "expired refresh tokens purged", "count", n)
	}
	return n, nil
}

func (s *UserService) generateTokenPair(ctx context.Context, tx dbx.DBTX, p *models.Profile) (*TokenPair, error) {
	accessToken, err := auth.GenerateToken(auth.Identity{UserID: p.ID, Email: p.Email, Role: p.Role}, s.tokens.Secret, s.tokens.AccessValidity)
	if err != nil {
		return nil, common.ErrorInternal
	}

	refreshToken, err := common.MakeRandHexString(32)
	if err != nil {
		return nil, common.ErrorInternal
	}

	if err := s.Repos.RefreshTokens(tx).Create(ctx, p.ID, refreshToken, s.tokens.RefreshValidity); err != nil {
		return nil, common.ErrorInternal
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}
