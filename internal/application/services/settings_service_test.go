package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/familyboard/core/internal/domain/entities"
	"github.com/familyboard/core/internal/infrastructure/logger"
	"github.com/familyboard/core/internal/ports"
)

func TestUpdateSettings(t *testing.T) {
	local := newMemLocalStore()
	svc := NewSettingsService(local, logger.NewNop())

	_, err := svc.UpdateSettings(entities.RoleFather, ports.UpdateSettingsRequest{WarnMinutes: 10})
	assert.ErrorIs(t, err, entities.ErrForbidden)
	assert.Equal(t, 30, svc.Settings().WarnMinutes)

	got, err := svc.UpdateSettings(entities.RoleMother, ports.UpdateSettingsRequest{WarnMinutes: 5000})
	require.NoError(t, err)
	assert.Equal(t, 1440, got.WarnMinutes)

	got, err = svc.UpdateSettings(entities.RoleMother, ports.UpdateSettingsRequest{WarnMinutes: -3})
	require.NoError(t, err)
	assert.Equal(t, 1, got.WarnMinutes)
	assert.Equal(t, 1, local.Settings().WarnMinutes)
}

func TestMailLogVisibility(t *testing.T) {
	local := newMemLocalStore()
	require.NoError(t, local.SetProfile(entities.RoleSon, entities.Profile{Name: "Reza", Email: "Reza@Example.com"}))
	now := time.Now()
	for i, to := range []string{"mom@example.com", " reza@example.com", "dad@example.com", "REZA@example.com"} {
		require.NoError(t, local.AppendMailLog(entities.MailLogEntry{ID: string(rune('a' + i)), To: to, Time: now}))
	}
	svc := NewSettingsService(local, logger.NewNop())

	assert.Len(t, svc.MailLog(entities.RoleMother), 4)

	mine := svc.MailLog(entities.RoleSon)
	require.Len(t, mine, 2)
	assert.Equal(t, "d", mine[0].ID)
	assert.Equal(t, "b", mine[1].ID)

	assert.Empty(t, svc.MailLog(entities.RoleFather))
}
