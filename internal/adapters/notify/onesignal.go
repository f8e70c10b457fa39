package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/familyboard/core/internal/domain/entities"
	"github.com/familyboard/core/internal/infrastructure/config"
	"github.com/familyboard/core/internal/ports"
)

const providerOneSignal = "onesignal"

// ErrNoExternalID is returned by AddTag when no identity is given.
var ErrNoExternalID = errors.New("push device has no external id")

// OneSignalClient talks to the OneSignal REST API with the app's
// confidential REST key. It must only run server-side.
type OneSignalClient struct {
	baseURL string
	appID   string
	apiKey  string
	siteURL string
	http    *http.Client
}

var (
	_ ports.PushSender      = (*OneSignalClient)(nil)
	_ ports.DeviceRegistrar = (*OneSignalClient)(nil)
)

// NewOneSignalClient creates a client from the push configuration.
func NewOneSignalClient(cfg config.PushConfig) *OneSignalClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &OneSignalClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		appID:   cfg.AppID,
		apiKey:  cfg.RESTAPIKey,
		siteURL: cfg.SiteURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// Configured reports whether the app id and REST key are set.
func (c *OneSignalClient) Configured() bool {
	return c.appID != "" && c.apiKey != ""
}

type tagFilter struct {
	Field    string `json:"field"`
	Key      string `json:"key"`
	Relation string `json:"relation"`
	Value    string `json:"value"`
}

type notificationPayload struct {
	AppID          string              `json:"app_id"`
	Headings       map[string]string   `json:"headings"`
	Contents       map[string]string   `json:"contents"`
	Filters        []tagFilter         `json:"filters,omitempty"`
	IncludeAliases map[string][]string `json:"include_aliases,omitempty"`
	TargetChannel  string              `json:"target_channel,omitempty"`
	URL            string              `json:"url,omitempty"`
	SendAfter      string              `json:"send_after,omitempty"`
}

func (c *OneSignalClient) buildPayload(msg ports.PushMessage) (notificationPayload, error) {
	p := notificationPayload{
		AppID:    c.appID,
		Headings: map[string]string{"en": msg.Title},
		Contents: map[string]string{"en": msg.Body},
		URL:      c.siteURL,
	}
	if msg.SendAfter != nil {
		p.SendAfter = msg.SendAfter.UTC().Format(http.TimeFormat)
	}

	switch {
	case msg.ExternalID != "":
		p.IncludeAliases = map[string][]string{"external_id": {msg.ExternalID}}
		p.TargetChannel = "push"
	case msg.Role != "":
		p.Filters = []tagFilter{{Field: "tag", Key: "role", Relation: "=", Value: string(msg.Role)}}
	default:
		return p, entities.ErrTargetMissing
	}
	return p, nil
}

// Send creates a notification and returns OneSignal's response body.
func (c *OneSignalClient) Send(ctx context.Context, msg ports.PushMessage) ([]byte, error) {
	if !c.Configured() {
		return nil, entities.ErrPushNotConfigured
	}
	payload, err := c.buildPayload(msg)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPost, "/notifications", payload)
}

// Init checks that the client can address the app.
func (c *OneSignalClient) Init(ctx context.Context) error {
	if !c.Configured() {
		return entities.ErrPushNotConfigured
	}
	return ctx.Err()
}

// Login registers externalID as a OneSignal user; an existing user is fine.
func (c *OneSignalClient) Login(ctx context.Context, externalID string) error {
	body := map[string]interface{}{
		"identity": map[string]string{"external_id": externalID},
	}
	_, err := c.do(ctx, http.MethodPost, "/apps/"+url.PathEscape(c.appID)+"/users", body)
	var perr *ports.ProviderError
	if err != nil && !(errors.As(err, &perr) && perr.Status == http.StatusConflict) {
		return err
	}
	return nil
}

// AddTag sets a tag on the user registered under externalID.
func (c *OneSignalClient) AddTag(ctx context.Context, externalID, key, value string) error {
	if externalID == "" {
		return ErrNoExternalID
	}

	body := map[string]interface{}{
		"properties": map[string]interface{}{
			"tags": map[string]string{key: value},
		},
	}
	path := "/apps/" + url.PathEscape(c.appID) + "/users/by/external_id/" + url.PathEscape(externalID)
	_, err := c.do(ctx, http.MethodPatch, path, body)
	return err
}

func (c *OneSignalClient) do(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode push request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Authorization", "Basic "+c.apiKey)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("push request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read push response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ports.ProviderError{Provider: providerOneSignal, Status: resp.StatusCode, Body: asJSON(data)}
	}
	return asJSON(data), nil
}

// asJSON keeps valid JSON as-is and wraps anything else in a JSON string.
func asJSON(data []byte) json.RawMessage {
	if json.Valid(data) {
		return json.RawMessage(data)
	}
	quoted, _ := json.Marshal(string(data))
	return quoted
}
