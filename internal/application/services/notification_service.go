package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/familyboard/core/internal/domain/entities"
	"github.com/familyboard/core/internal/infrastructure/config"
	"github.com/familyboard/core/internal/infrastructure/logger"
	"github.com/familyboard/core/internal/infrastructure/metrics"
	"github.com/familyboard/core/internal/ports"
)

const (
	emailAttempts      = 2
	emailSubject       = "Task reminder"
	defaultDisplayName = "Dear member"
	emptyRecipient     = "—"
)

// Mail log prefixes, one per delivery outcome.
const (
	logPrefixInvalid       = "[INVALID EMAIL]"
	logPrefixConfigMissing = "[CONFIG MISSING]"
	logPrefixSent          = "[EMAIL]"
	logPrefixFailed        = "[FAILED EMAIL]"
	logPrefixPush          = "[PUSH]"
	logPrefixPushFailed    = "[FAILED PUSH]"
)

// NotificationService delivers messages by email and push and records every
// email attempt in the device mail log.
type NotificationService struct {
	email    ports.EmailSender
	push     ports.PushSender
	local    ports.LocalStore
	emailCfg config.EmailConfig
	metrics  *metrics.Metrics
	clock    entities.Clock
	logger   *logger.Logger
}

var _ ports.Dispatcher = (*NotificationService)(nil)

// NewNotificationService creates a new notification service
func NewNotificationService(
	email ports.EmailSender,
	push ports.PushSender,
	local ports.LocalStore,
	emailCfg config.EmailConfig,
	m *metrics.Metrics,
	clock entities.Clock,
	logger *logger.Logger,
) *NotificationService {
	if clock == nil {
		clock = entities.SystemClock
	}
	return &NotificationService{
		email:    email,
		push:     push,
		local:    local,
		emailCfg: emailCfg,
		metrics:  m,
		clock:    clock,
		logger:   logger.WithComponent("dispatch"),
	}
}

// SendEmail delivers text to the address to. It never returns an error; the
// outcome is reported as a bool and written to the mail log.
func (s *NotificationService) SendEmail(ctx context.Context, to, text, displayName string) bool {
	to = strings.TrimSpace(to)

	if !entities.IsValidEmail(to) {
		recipient := to
		if recipient == "" {
			recipient = emptyRecipient
		}
		s.record("email", "invalid", recipient, logPrefixInvalid, text, nil)
		return false
	}

	if !s.emailCfg.Configured() || s.email == nil {
		s.record("email", "config_missing", to, logPrefixConfigMissing, text, nil)
		return false
	}

	if strings.TrimSpace(displayName) == "" {
		displayName = defaultDisplayName
	}
	params := ports.EmailParams{
		ToEmail: to,
		ToName:  displayName,
		Subject: emailSubject,
		Message: text,
	}

	var lastErr error
	for attempt := 1; attempt <= emailAttempts; attempt++ {
		status, err := s.email.Send(ctx, s.emailCfg.ServiceID, s.emailCfg.TemplateID, params)
		if err == nil && status == 200 {
			s.record("email", "sent", to, logPrefixSent, text, nil)
			return true
		}
		if err == nil {
			err = fmt.Errorf("email provider returned status %d", status)
		}
		lastErr = err
		s.logger.Debugw("Email attempt failed", "attempt", attempt, "to", to, "error", err)
	}

	s.record("email", "failed", to, logPrefixFailed, text, lastErr)
	return false
}

// SendPush validates req and hands it to the push provider, returning the
// provider's response body.
func (s *NotificationService) SendPush(ctx context.Context, req ports.PushRequest) (json.RawMessage, error) {
	msg, err := buildPushMessage(req)
	if err != nil {
		return nil, err
	}

	target := msg.ExternalID
	if target == "" {
		target = "role:" + string(msg.Role)
	}

	if !s.PushConfigured() {
		s.metrics.ObserveNotification("push", "config_missing")
		s.logger.LogNotification("push", "config_missing", target, entities.ErrPushNotConfigured)
		return nil, entities.ErrPushNotConfigured
	}

	data, err := s.push.Send(ctx, msg)
	if err != nil {
		var perr *ports.ProviderError
		if errors.As(err, &perr) {
			s.logger.Errorw("Push provider error", "target", target, "status", perr.Status, "payload", string(perr.Body))
		}
		s.metrics.ObserveNotification("push", "failed")
		s.logger.LogNotification("push", "failed", target, err)
		return nil, err
	}

	s.metrics.ObserveNotification("push", "sent")
	s.logger.LogNotification("push", "sent", target, nil)
	return json.RawMessage(data), nil
}

// PushConfigured reports whether a push provider with credentials is wired.
func (s *NotificationService) PushConfigured() bool {
	return s.push != nil && s.push.Configured()
}

// NotifyRole sends a push to every device tagged with role. Failures are
// logged and recorded in the mail log, never returned.
func (s *NotificationService) NotifyRole(ctx context.Context, role entities.Role, title, body string) bool {
	if !s.PushConfigured() {
		return false
	}
	_, err := s.SendPush(ctx, ports.PushRequest{To: string(role), Title: title, Body: body})
	if err != nil {
		s.appendLog(string(role), logPrefixPushFailed+" "+body)
		return false
	}
	s.appendLog(string(role), logPrefixPush+" "+body)
	return true
}

func (s *NotificationService) record(channel, outcome, to, prefix, text string, err error) {
	s.metrics.ObserveNotification(channel, outcome)
	s.logger.LogNotification(channel, outcome, to, err)
	s.appendLog(to, prefix+" "+text)
}

func (s *NotificationService) appendLog(to, text string) {
	if s.local == nil {
		return
	}
	entry := entities.MailLogEntry{
		ID:   uuid.NewString(),
		To:   to,
		Text: text,
		Time: s.clock(),
	}
	if err := s.local.AppendMailLog(entry); err != nil {
		s.logger.WithError(err).Warn("Failed to append mail log entry")
	}
}

func buildPushMessage(req ports.PushRequest) (ports.PushMessage, error) {
	msg := ports.PushMessage{
		ExternalID: strings.TrimSpace(req.ExternalID),
		Title:      req.Title,
		Body:       req.Body,
	}

	verr := &entities.ValidationError{}
	if to := strings.TrimSpace(req.To); to != "" {
		role, err := entities.ParseRole(to)
		if err != nil {
			verr.Add("to", "must be one of mother, father, son")
		}
		msg.Role = role
	}
	if msg.ExternalID == "" && msg.Role == "" && verr.OrNil() == nil {
		return msg, entities.ErrTargetMissing
	}

	if req.ScheduleAt != nil && strings.TrimSpace(*req.ScheduleAt) != "" {
		at, err := time.Parse(time.RFC3339, strings.TrimSpace(*req.ScheduleAt))
		if err != nil {
			verr.Add("scheduleAt", "must be an ISO-8601 timestamp")
		} else {
			msg.SendAfter = &at
		}
	}

	if err := verr.OrNil(); err != nil {
		return msg, err
	}
	return msg, nil
}
