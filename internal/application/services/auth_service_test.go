package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/familyboard/core/internal/domain/entities"
	"github.com/familyboard/core/internal/infrastructure/config"
	"github.com/familyboard/core/internal/infrastructure/logger"
	"github.com/familyboard/core/internal/ports"
)

var testJWTConfig = config.JWTConfig{Secret: "test-secret", ExpiresIn: 24 * time.Hour, Issuer: "familyboard"}

func newTestAuth(reg ports.DeviceRegistrar) (*AuthService, *memLocalStore, *fixedClock) {
	local := newMemLocalStore()
	clock := &fixedClock{now: time.Now().Truncate(time.Second)}
	svc := NewAuthService(local, reg, testJWTConfig, config.PushConfig{ExternalIDPrefix: "family-"}, clock.Now, logger.NewNop())
	return svc, local, clock
}

func TestLoginSavesProfileAndSession(t *testing.T) {
	reg := &fakeRegistrar{}
	svc, local, clock := newTestAuth(reg)

	resp, err := svc.Login(context.Background(), ports.LoginRequest{Role: "father", Name: " Ali ", Email: "ali@example.com"})
	require.NoError(t, err)

	assert.Equal(t, entities.RoleFather, resp.Role)
	assert.Equal(t, entities.Profile{Name: "Ali", Email: "ali@example.com"}, resp.Profile)
	assert.Equal(t, clock.Now().Add(24*time.Hour), resp.ExpiresAt)
	assert.NotEmpty(t, resp.Token)

	assert.Equal(t, resp.Profile, local.Profile(entities.RoleFather))
	session, ok := local.Session()
	require.True(t, ok)
	assert.Equal(t, entities.RoleFather, session.Role)
	assert.Equal(t, resp.ExpiresAt.UnixMilli(), session.ExpiresAt)

	svc.WaitRegistrations()
	assert.Equal(t, []string{"login:family-father", "tag:family-father:role=father"}, reg.calls)

	claims, err := svc.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, entities.RoleFather, claims.Role)
}

func TestLoginValidation(t *testing.T) {
	svc, local, _ := newTestAuth(nil)

	_, err := svc.Login(context.Background(), ports.LoginRequest{Role: "son", Name: " ", Email: "reza@example"})
	var verr *entities.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "enter a name", verr.Fields["name"])
	assert.Equal(t, "invalid email", verr.Fields["email"])

	_, err = svc.Login(context.Background(), ports.LoginRequest{Role: "son", Name: "Reza"})
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "enter an email", verr.Fields["email"])

	_, err = svc.Login(context.Background(), ports.LoginRequest{Role: "grandma", Name: "x", Email: "x@example.com"})
	assert.ErrorIs(t, err, entities.ErrInvalidRole)

	_, ok := local.Session()
	assert.False(t, ok)
}

func TestLoginSurvivesRegistrationFailure(t *testing.T) {
	reg := &fakeRegistrar{err: errors.New("push down")}
	svc, _, _ := newTestAuth(reg)

	_, err := svc.Login(context.Background(), ports.LoginRequest{Role: "mother", Name: "Maryam", Email: "m@example.com"})
	require.NoError(t, err)
	svc.WaitRegistrations()
	assert.Equal(t, []string{"login:family-mother"}, reg.calls)
}

func TestTokenRejectedAfterLogoutOrRoleSwitch(t *testing.T) {
	svc, _, _ := newTestAuth(nil)
	ctx := context.Background()

	dad, err := svc.Login(ctx, ports.LoginRequest{Role: "father", Name: "Ali", Email: "ali@example.com"})
	require.NoError(t, err)
	son, err := svc.Login(ctx, ports.LoginRequest{Role: "son", Name: "Reza", Email: "reza@example.com"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(dad.Token)
	assert.ErrorIs(t, err, entities.ErrSessionExpired)

	_, err = svc.ValidateToken(son.Token)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, entities.RoleSon))
	_, err = svc.ValidateToken(son.Token)
	assert.ErrorIs(t, err, entities.ErrSessionExpired)
}

func TestSessionExpires(t *testing.T) {
	svc, local, clock := newTestAuth(nil)

	resp, err := svc.Login(context.Background(), ports.LoginRequest{Role: "mother", Name: "Maryam", Email: "m@example.com"})
	require.NoError(t, err)

	clock.Advance(24*time.Hour + time.Second)

	_, ok := svc.CurrentSession()
	assert.False(t, ok)
	_, ok = local.Session()
	assert.False(t, ok, "expired session is cleared")

	_, err = svc.ValidateToken(resp.Token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc, _, _ := newTestAuth(nil)
	_, err := svc.ValidateToken("not.a.token")
	assert.Error(t, err)
}

func TestBackToBackLoginsTagTheirOwnIdentity(t *testing.T) {
	reg := &fakeRegistrar{}
	svc, _, _ := newTestAuth(reg)
	ctx := context.Background()

	_, err := svc.Login(ctx, ports.LoginRequest{Role: "mother", Name: "Maryam", Email: "m@example.com"})
	require.NoError(t, err)
	_, err = svc.Login(ctx, ports.LoginRequest{Role: "father", Name: "Ali", Email: "ali@example.com"})
	require.NoError(t, err)
	svc.WaitRegistrations()

	reg.mu.Lock()
	defer reg.mu.Unlock()
	assert.ElementsMatch(t, []string{
		"login:family-mother", "tag:family-mother:role=mother",
		"login:family-father", "tag:family-father:role=father",
	}, reg.calls)
}
