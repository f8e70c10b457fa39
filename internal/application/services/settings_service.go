package services

import (
	"fmt"
	"strings"

	"github.com/familyboard/core/internal/domain/entities"
	"github.com/familyboard/core/internal/infrastructure/logger"
	"github.com/familyboard/core/internal/ports"
)

// SettingsService exposes the device-local profiles, settings and mail log
type SettingsService struct {
	local  ports.LocalStore
	logger *logger.Logger
}

// NewSettingsService creates a new settings service
func NewSettingsService(local ports.LocalStore, logger *logger.Logger) *SettingsService {
	return &SettingsService{
		local:  local,
		logger: logger,
	}
}

func (s *SettingsService) Profiles() map[entities.Role]entities.Profile {
	return s.local.Profiles()
}

func (s *SettingsService) Settings() entities.Settings {
	return s.local.Settings()
}

// UpdateSettings stores a new reminder lead time, clamped to 1..1440 minutes.
// Only the mother may change it.
func (s *SettingsService) UpdateSettings(role entities.Role, req ports.UpdateSettingsRequest) (entities.Settings, error) {
	if role != entities.RoleMother {
		return entities.Settings{}, entities.ErrForbidden
	}

	settings := entities.Settings{WarnMinutes: req.WarnMinutes}.Normalize()
	if err := s.local.SetSettings(settings); err != nil {
		return entities.Settings{}, fmt.Errorf("failed to save settings: %w", err)
	}

	s.logger.Info("Reminder lead time updated", "warn_minutes", settings.WarnMinutes)
	return settings, nil
}

// MailLog returns the whole log for the mother and, for other members, only
// entries addressed to their own email.
func (s *SettingsService) MailLog(role entities.Role) []entities.MailLogEntry {
	entries := s.local.MailLog()
	if role == entities.RoleMother {
		return entries
	}

	email := strings.ToLower(strings.TrimSpace(s.local.Profile(role).Email))
	mine := make([]entities.MailLogEntry, 0)
	if email == "" {
		return mine
	}
	for _, e := range entries {
		if strings.ToLower(strings.TrimSpace(e.To)) == email {
			mine = append(mine, e)
		}
	}
	return mine
}
