package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/findingjimoh/android-sms-gateway/internal/model"
)

// GatewayClient translates domain calls into authenticated requests against
// the remote gateway API. It holds no retry logic; callers own retries.
type GatewayClient struct {
	baseURL  string
	hostname string
	client   *http.Client
}

func NewGatewayClient(baseURL string) (*GatewayClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server url %q: %w", baseURL, err)
	}
	return &GatewayClient{
		baseURL:  baseURL,
		hostname: u.Hostname(),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// Hostname is the server host, used in registration event payloads.
func (c *GatewayClient) Hostname() string { return c.hostname }

type messageContentWire struct {
	Text *struct {
		Text string `json:"text"`
	} `json:"textMessage,omitempty"`
	Data *struct {
		Data []byte `json:"data"`
		Port uint16 `json:"port"`
	} `json:"dataMessage,omitempty"`
}

type messageWire struct {
	ID                 string             `json:"id"`
	Content            messageContentWire `json:"content"`
	PhoneNumbers       []string           `json:"phoneNumbers"`
	IsEncrypted        *bool              `json:"isEncrypted,omitempty"`
	CreatedAt          *time.Time         `json:"createdAt,omitempty"`
	WithDeliveryReport *bool              `json:"withDeliveryReport,omitempty"`
	SimNumber          *int               `json:"simNumber,omitempty"`
	ValidUntil         *time.Time         `json:"validUntil,omitempty"`
	Priority           int                `json:"priority,omitempty"`
}

// GetMessages fetches the pending remote queue in the requested order.
func (c *GatewayClient) GetMessages(ctx context.Context, token string, order model.ProcessingOrder) ([]model.RemoteMessage, error) {
	var wire []messageWire
	path := "/v1/messages?order=" + url.QueryEscape(string(order))
	if err := c.do(ctx, http.MethodGet, path, token, nil, &wire); err != nil {
		return nil, err
	}

	out := make([]model.RemoteMessage, 0, len(wire))
	for _, w := range wire {
		m := model.RemoteMessage{
			ID:                 w.ID,
			PhoneNumbers:       w.PhoneNumbers,
			IsEncrypted:        w.IsEncrypted,
			CreatedAt:          w.CreatedAt,
			WithDeliveryReport: w.WithDeliveryReport,
			SimNumber:          w.SimNumber,
			ValidUntil:         w.ValidUntil,
			Priority:           w.Priority,
		}
		switch {
		case w.Content.Text != nil:
			m.Content = model.TextContent{Text: w.Content.Text.Text}
		case w.Content.Data != nil:
			m.Content = model.DataContent{Data: w.Content.Data.Data, Port: w.Content.Data.Port}
		}
		out = append(out, m)
	}
	return out, nil
}

// RecipientPatch is the per-recipient slice of a state patch.
type RecipientPatch struct {
	PhoneNumber string  `json:"phoneNumber"`
	State       string  `json:"state"`
	Error       *string `json:"error,omitempty"`
}

// MessagePatch reports one message's delivery state back to the server.
// States maps state name to the epoch-millisecond timestamp it was entered.
type MessagePatch struct {
	ID         string           `json:"id"`
	State      string           `json:"state"`
	Recipients []RecipientPatch `json:"recipients"`
	States     map[string]int64 `json:"states"`
}

func (c *GatewayClient) PatchMessages(ctx context.Context, token string, patches []MessagePatch) error {
	return c.do(ctx, http.MethodPatch, "/v1/messages", token, patches, nil)
}

type inboxItemWire struct {
	PhoneNumber string `json:"phoneNumber"`
	Body        string `json:"body"`
	ReceivedAt  int64  `json:"receivedAt"`
	ExternalID  string `json:"externalId"`
}

// PushInbox uploads one page of locally stored inbound messages. A conflict
// response means the server already holds every item in the page.
func (c *GatewayClient) PushInbox(ctx context.Context, token string, items []model.InboxItem) error {
	wire := make([]inboxItemWire, 0, len(items))
	for _, it := range items {
		wire = append(wire, inboxItemWire{
			PhoneNumber: it.PhoneNumber,
			Body:        it.Body,
			ReceivedAt:  it.ReceivedAt.UnixMilli(),
			ExternalID:  it.ExternalID,
		})
	}
	return c.do(ctx, http.MethodPost, "/v1/inbox/batch", token, wire, nil)
}

type registerRequest struct {
	Name      string `json:"name"`
	PushToken string `json:"pushToken,omitempty"`
	Login     string `json:"login,omitempty"`
	Password  string `json:"password,omitempty"`
	Code      string `json:"code,omitempty"`
}

type registerResponse struct {
	ID       string `json:"id"`
	Token    string `json:"token"`
	Login    string `json:"login"`
	Password string `json:"password"`
}

// RegisterDevice creates a fresh device identity on the server. Credentials
// or a one-time code select the owning account; otherwise a new anonymous
// account is created.
func (c *GatewayClient) RegisterDevice(ctx context.Context, deviceName, pushToken string, mode model.RegistrationMode) (model.RegistrationInfo, error) {
	req := registerRequest{
		Name:      deviceName,
		PushToken: pushToken,
	}
	switch {
	case mode.IsCredentials():
		req.Login = mode.Login
		req.Password = mode.Password
	case mode.IsCode():
		req.Code = mode.Code
	}

	var resp registerResponse
	if err := c.do(ctx, http.MethodPost, "/v1/device", "", req, &resp); err != nil {
		return model.RegistrationInfo{}, err
	}
	if resp.ID == "" || resp.Token == "" {
		return model.RegistrationInfo{}, fmt.Errorf("incomplete registration response: id=%q", resp.ID)
	}
	return model.RegistrationInfo{
		DeviceID:    resp.ID,
		Login:       resp.Login,
		Password:    resp.Password,
		AccessToken: resp.Token,
	}, nil
}

type devicePatchRequest struct {
	ID        string `json:"id"`
	PushToken string `json:"pushToken"`
}

// PatchDevice updates the push token of an already registered device.
func (c *GatewayClient) PatchDevice(ctx context.Context, token, deviceID, pushToken string) error {
	return c.do(ctx, http.MethodPatch, "/v1/device", token, devicePatchRequest{
		ID:        deviceID,
		PushToken: pushToken,
	}, nil)
}

type passwordChangeRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (c *GatewayClient) ChangePassword(ctx context.Context, token, current, newPassword string) error {
	return c.do(ctx, http.MethodPatch, "/v1/user/password", token, passwordChangeRequest{
		CurrentPassword: current,
		NewPassword:     newPassword,
	}, nil)
}

type webhookWire struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Event string `json:"event"`
}

func (c *GatewayClient) GetWebhooks(ctx context.Context, token string) ([]model.Webhook, error) {
	var wire []webhookWire
	if err := c.do(ctx, http.MethodGet, "/v1/webhooks", token, nil, &wire); err != nil {
		return nil, err
	}
	out := make([]model.Webhook, 0, len(wire))
	for _, w := range wire {
		out = append(out, model.Webhook{ID: w.ID, URL: w.URL, Event: w.Event})
	}
	return out, nil
}

func (c *GatewayClient) GetSettings(ctx context.Context, token string) (map[string]any, error) {
	var out map[string]any
	if err := c.do(ctx, http.MethodGet, "/v1/settings", token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *GatewayClient) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	b, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%s %s: %w", method, path, ErrUnauthorized)
	case resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("%s %s: %w", method, path, ErrConflict)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &StatusError{Status: resp.StatusCode, Body: string(b)}
	}

	if out != nil {
		if err := json.Unmarshal(b, out); err != nil {
			return fmt.Errorf("failed to decode json: %w body=%q", err, string(b))
		}
	}
	return nil
}
