package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/vidtube/vidtube-server/internal/auth"
	"github.com/vidtube/vidtube-server/internal/config"
	"github.com/vidtube/vidtube-server/internal/domain"
	"github.com/vidtube/vidtube-server/internal/repository"
)

// SessionService owns the credential and session-token lifecycle: register,
// login, refresh-token rotation, and logout. A user holds at most one active
// refresh token; login and every successful refresh overwrite it, so older
// tokens stop being honored even before they expire.
type SessionService struct {
	userRepo repository.UserRepository
	hasher   *auth.PasswordHasher
	issuer   *auth.TokenIssuer
}

func NewSessionService(userRepo repository.UserRepository, cfg *config.Config) *SessionService {
	return &SessionService{
		userRepo: userRepo,
		hasher:   auth.NewPasswordHasher(cfg.BcryptCost),
		issuer: auth.NewTokenIssuer(
			cfg.AccessTokenSecret,
			cfg.RefreshTokenSecret,
			cfg.AccessTokenExpiry,
			cfg.RefreshTokenExpiry,
		),
	}
}

type RegisterInput struct {
	FullName      string
	Email         string
	Username      string
	Password      string
	AvatarURL     string
	CoverImageURL string
}

type LoginInput struct {
	// Identifier is the username or the email; either resolves the account.
	Identifier string
	Password   string
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

type LoginResult struct {
	User         *domain.User
	AccessToken  string
	RefreshToken string
}

// Register creates a user record with a hashed password and returns the
// sanitized record. The store's unique indexes are the authority on
// username/email collisions; the lookup here only gives the common case a
// friendly error before the insert.
func (s *SessionService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	fullName := strings.TrimSpace(input.FullName)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	username := strings.ToLower(strings.TrimSpace(input.Username))

	if fullName == "" || email == "" || username == "" || strings.TrimSpace(input.Password) == "" {
		return nil, fmt.Errorf("%w: fullName, email, username and password are required", domain.ErrValidation)
	}
	if strings.TrimSpace(input.AvatarURL) == "" {
		return nil, fmt.Errorf("%w: avatar is required", domain.ErrValidation)
	}

	if err := s.CheckAvailable(ctx, username, email); err != nil {
		return nil, err
	}

	passwordHash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	user := &domain.User{
		ID:            uuid.New(),
		Username:      username,
		Email:         email,
		FullName:      fullName,
		AvatarURL:     input.AvatarURL,
		CoverImageURL: input.CoverImageURL,
		PasswordHash:  passwordHash,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, domain.ErrConflict
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	created, err := s.userRepo.GetByID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: user not readable after creation", domain.ErrInternal)
	}

	return created.Sanitized(), nil
}

// CheckAvailable reports whether the username and email are both free. The
// transport layer calls it before uploading assets so a doomed registration
// does not orphan objects in the bucket; Register re-checks on its own path.
func (s *SessionService) CheckAvailable(ctx context.Context, username, email string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	email = strings.ToLower(strings.TrimSpace(email))

	existing, err := s.userRepo.GetByUsernameOrEmail(ctx, username, email)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}
	if existing != nil {
		return domain.ErrConflict
	}
	return nil
}

// Login verifies credentials and starts a session, replacing whatever refresh
// token the record held before.
func (s *SessionService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	identifier := strings.ToLower(strings.TrimSpace(input.Identifier))
	if identifier == "" || strings.TrimSpace(input.Password) == "" {
		return nil, fmt.Errorf("%w: username or email and password are required", domain.ErrValidation)
	}

	user, err := s.userRepo.GetByUsernameOrEmail(ctx, identifier, identifier)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	ok, err := s.hasher.Verify(input.Password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}
	if !ok {
		return nil, domain.ErrUnauthorized
	}

	pair, err := s.rotateTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		User:         user.Sanitized(),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, nil
}

// Refresh rotates a presented refresh token into a new token pair. Only the
// most recently issued token for the user is honored: a structurally valid,
// unexpired token that no longer matches the stored value is a replay and is
// rejected without any state change.
func (s *SessionService) Refresh(ctx context.Context, presented string) (*TokenPair, error) {
	if presented == "" {
		return nil, domain.ErrUnauthorized
	}

	// Token verification failures surface as the same generic error so the
	// response never reveals which check failed.
	claims, err := s.issuer.VerifyRefresh(presented)
	if err != nil {
		return nil, domain.ErrUnauthorized
	}

	userID, err := claims.UserID()
	if err != nil {
		return nil, domain.ErrUnauthorized
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	if user.RefreshToken == nil || *user.RefreshToken != presented {
		return nil, domain.ErrUnauthorized
	}

	return s.rotateTokens(ctx, user)
}

// Logout revokes the active session server-side. Clearing an already-absent
// token is not an error.
func (s *SessionService) Logout(ctx context.Context, userID uuid.UUID) error {
	err := s.userRepo.UpdateRefreshToken(ctx, userID, nil)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}
	return nil
}

// VerifyAccessToken resolves an access token to its claims for the transport
// layer's auth middleware.
func (s *SessionService) VerifyAccessToken(tokenString string) (*auth.AccessClaims, error) {
	claims, err := s.issuer.VerifyAccess(tokenString)
	if err != nil {
		return nil, domain.ErrUnauthorized
	}
	return claims, nil
}

func (s *SessionService) GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return user.Sanitized(), nil
}

// rotateTokens mints a fresh pair from the current record state and persists
// the new refresh token as the last step. If the write fails the pair is
// discarded and the whole operation fails; tokens never outlive a failed
// rotation. Two concurrent rotations for the same user can interleave and the
// last write wins; no row lock is taken.
func (s *SessionService) rotateTokens(ctx context.Context, user *domain.User) (*TokenPair, error) {
	accessToken, err := s.issuer.IssueAccess(auth.TokenUser{
		ID:       user.ID,
		Email:    user.Email,
		Username: user.Username,
		FullName: user.FullName,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	refreshToken, err := s.issuer.IssueRefresh(user.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	if err := s.userRepo.UpdateRefreshToken(ctx, user.ID, &refreshToken); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}
