package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/familyboard/core/internal/domain/entities"
	"github.com/familyboard/core/internal/infrastructure/config"
	"github.com/familyboard/core/internal/infrastructure/logger"
	"github.com/familyboard/core/internal/ports"
)

const deviceRegistrationTimeout = 30 * time.Second

// Claims represents the JWT claims
type Claims struct {
	Role entities.Role `json:"role"`
	jwt.RegisteredClaims
}

// AuthService manages the single role session of this device
type AuthService struct {
	local     ports.LocalStore
	registrar ports.DeviceRegistrar
	jwtConfig config.JWTConfig
	idPrefix  string
	clock     entities.Clock
	logger    *logger.Logger

	registrations sync.WaitGroup
}

// NewAuthService creates a new auth service
func NewAuthService(
	local ports.LocalStore,
	registrar ports.DeviceRegistrar,
	jwtConfig config.JWTConfig,
	pushCfg config.PushConfig,
	clock entities.Clock,
	logger *logger.Logger,
) *AuthService {
	if clock == nil {
		clock = entities.SystemClock
	}
	return &AuthService{
		local:     local,
		registrar: registrar,
		jwtConfig: jwtConfig,
		idPrefix:  pushCfg.ExternalIDPrefix,
		clock:     clock,
		logger:    logger.WithComponent("auth"),
	}
}

// Login saves the member's profile, opens a session for the role and
// registers this device for push under the role.
func (s *AuthService) Login(ctx context.Context, req ports.LoginRequest) (*ports.AuthResponse, error) {
	role, err := entities.ParseRole(req.Role)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	email := strings.TrimSpace(req.Email)

	verr := &entities.ValidationError{}
	if name == "" {
		verr.Add("name", "enter a name")
	}
	if email == "" {
		verr.Add("email", "enter an email")
	} else if !entities.IsValidEmail(email) {
		verr.Add("email", "invalid email")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	profile := entities.Profile{Name: name, Email: email}
	if err := s.local.SetProfile(role, profile); err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}

	ttl := s.jwtConfig.ExpiresIn
	if ttl <= 0 {
		ttl = entities.SessionTTL
	}
	now := s.clock()
	expiresAt := now.Add(ttl)
	if err := s.local.SetSession(entities.Session{Role: role, ExpiresAt: expiresAt.UnixMilli()}); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	token, err := s.generateToken(role, now, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	s.registerDevice(role)

	s.logger.WithRole(string(role)).Info("Member logged in")

	return &ports.AuthResponse{
		Token:     token,
		Role:      role,
		Profile:   profile,
		ExpiresAt: expiresAt,
	}, nil
}

// registerDevice runs push registration in the background; failures are
// only logged.
func (s *AuthService) registerDevice(role entities.Role) {
	if s.registrar == nil {
		return
	}
	externalID := s.idPrefix + string(role)

	s.registrations.Add(1)
	go func() {
		defer s.registrations.Done()
		ctx, cancel := context.WithTimeout(context.Background(), deviceRegistrationTimeout)
		defer cancel()

		log := s.logger.WithRole(string(role))
		if err := s.registrar.Login(ctx, externalID); err != nil {
			if !errors.Is(err, entities.ErrPushNotConfigured) {
				log.WithError(err).Warn("Push device login failed")
			}
			return
		}
		if err := s.registrar.AddTag(ctx, externalID, "role", string(role)); err != nil {
			log.WithError(err).Warn("Push role tag failed")
			return
		}
		log.Infow("Push device registered", "external_id", externalID)
	}()
}

// WaitRegistrations blocks until background device registrations finish.
func (s *AuthService) WaitRegistrations() {
	s.registrations.Wait()
}

// Logout clears the device session
func (s *AuthService) Logout(ctx context.Context, role entities.Role) error {
	if err := s.local.ClearSession(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	s.logger.WithRole(string(role)).Info("Member logged out")
	return nil
}

// CurrentSession returns the live session, clearing it when it has expired.
func (s *AuthService) CurrentSession() (entities.Session, bool) {
	session, ok := s.local.Session()
	if !ok {
		return entities.Session{}, false
	}
	if !session.Valid(s.clock()) {
		if err := s.local.ClearSession(); err != nil {
			s.logger.WithError(err).Warn("Failed to clear expired session")
		}
		return entities.Session{}, false
	}
	return session, true
}

// ValidateToken validates a JWT token against the device's current session
func (s *AuthService) ValidateToken(tokenString string) (*ports.Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtConfig.Secret), nil
	}, jwt.WithTimeFunc(s.clock))

	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	session, ok := s.CurrentSession()
	if !ok || session.Role != claims.Role {
		return nil, entities.ErrSessionExpired
	}

	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}

	return &ports.Claims{
		Role:      claims.Role,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *AuthService) generateToken(role entities.Role, now, expiresAt time.Time) (string, error) {
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.jwtConfig.Issuer,
			Subject:   string(role),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtConfig.Secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}
