// Package auth implementa registro, login y sesiones con JWT sobre el
// document store: el perfil vive en users/{uid} y el hash de contraseña en
// credentials/{uid}, nunca mezclados.
package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"fitlink/internal/domain"
	"fitlink/internal/store"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrWeakPassword       = errors.New("password too short")
	ErrRateLimited        = errors.New("rate limited")
)

const minPasswordLength = 6

const (
	usersCollection       = "users"
	credentialsCollection = "credentials"
)

// XPBootstrapper inicializa el perfil de experiencia en el registro.
type XPBootstrapper interface {
	EnsureProfile(ctx context.Context, userID string) error
}

// Service orquesta signup, signin, refresh y signout.
type Service struct {
	logger  *zap.Logger
	store   store.Store
	tokens  *JWTService
	limiter LoginRateLimiter
	xp      XPBootstrapper
}

func NewService(logger *zap.Logger, st store.Store, tokens *JWTService, limiter LoginRateLimiter, xp XPBootstrapper) *Service {
	return &Service{
		logger:  logger,
		store:   st,
		tokens:  tokens,
		limiter: limiter,
		xp:      xp,
	}
}

type SignUpInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUp crea el usuario con los defaults de perfil y devuelve su par de
// tokens. El email es único dentro de credentials.
func (s *Service) SignUp(ctx context.Context, input SignUpInput) (domain.User, TokenPair, error) {
	emailAddr := normalizeEmail(input.Email)
	if !isValidEmail(emailAddr) {
		return domain.User{}, TokenPair{}, ErrInvalidEmail
	}
	password := strings.TrimSpace(input.Password)
	if len(password) < minPasswordLength {
		return domain.User{}, TokenPair{}, ErrWeakPassword
	}

	existing, err := s.store.List(ctx, credentialsCollection, store.Where("email", emailAddr))
	if err != nil {
		return domain.User{}, TokenPair{}, err
	}
	if len(existing) > 0 {
		return domain.User{}, TokenPair{}, ErrEmailTaken
	}

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, TokenPair{}, err
	}

	user := domain.User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(input.Name),
		Email:        emailAddr,
		Bio:          domain.DefaultBio,
		Country:      domain.DefaultCountry,
		ProfileImage: "",
		Followers:    []string{},
		Following:    []string{},
	}

	userData, err := store.Encode(user)
	if err != nil {
		return domain.User{}, TokenPair{}, err
	}
	userData["followers"] = []string{}
	userData["following"] = []string{}
	userData["createdAt"] = store.ServerTimestamp

	ops := []store.Op{
		store.SetOp(usersCollection+"/"+user.ID, userData),
		store.SetOp(credentialsCollection+"/"+user.ID, map[string]any{
			"email":        emailAddr,
			"passwordHash": string(hashBytes),
		}),
	}
	if err := s.store.Apply(ctx, ops); err != nil {
		return domain.User{}, TokenPair{}, err
	}

	if s.xp != nil {
		if err := s.xp.EnsureProfile(ctx, user.ID); err != nil {
			s.logger.Warn("xp profile bootstrap failed", zap.Error(err), zap.String("userId", user.ID))
		}
	}

	pair, err := s.tokens.GeneratePair(user)
	if err != nil {
		return domain.User{}, TokenPair{}, err
	}
	s.logger.Info("user registered", zap.String("userId", user.ID))
	return user, pair, nil
}

// SignIn valida email y contraseña contra credentials/{uid} y emite tokens.
func (s *Service) SignIn(ctx context.Context, email, password string) (domain.User, TokenPair, error) {
	emailAddr := normalizeEmail(email)
	password = strings.TrimSpace(password)
	if emailAddr == "" || password == "" {
		return domain.User{}, TokenPair{}, ErrInvalidCredentials
	}
	if s.limiter != nil && !s.limiter.Allow(emailAddr) {
		return domain.User{}, TokenPair{}, ErrRateLimited
	}

	creds, err := s.store.List(ctx, credentialsCollection, store.Where("email", emailAddr))
	if err != nil {
		return domain.User{}, TokenPair{}, err
	}
	if len(creds) == 0 {
		return domain.User{}, TokenPair{}, ErrInvalidCredentials
	}
	hash, _ := creds[0].Data["passwordHash"].(string)
	if hash == "" {
		return domain.User{}, TokenPair{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return domain.User{}, TokenPair{}, ErrInvalidCredentials
	}

	userID := creds[0].ID()
	snap, err := s.store.Get(ctx, usersCollection+"/"+userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, TokenPair{}, ErrInvalidCredentials
		}
		return domain.User{}, TokenPair{}, err
	}
	var user domain.User
	if err := snap.Decode(&user); err != nil {
		return domain.User{}, TokenPair{}, err
	}
	user.ID = userID

	pair, err := s.tokens.GeneratePair(user)
	if err != nil {
		return domain.User{}, TokenPair{}, err
	}
	return user, pair, nil
}

// Refresh rota el refresh token recibido.
func (s *Service) Refresh(refreshToken string) (TokenPair, error) {
	return s.tokens.RefreshPair(refreshToken)
}

// SignOut revoca el refresh token; revocar uno ya inválido no es error.
func (s *Service) SignOut(refreshToken string) error {
	err := s.tokens.RevokeRefresh(refreshToken)
	if err != nil && !errors.Is(err, ErrJWTInvalid) && !errors.Is(err, ErrJWTExpired) {
		return err
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isValidEmail(email string) bool {
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return false
	}
	domainPart := email[at+1:]
	if !strings.Contains(domainPart, ".") {
		return false
	}
	return !strings.ContainsAny(email, " \t\r\n")
}
