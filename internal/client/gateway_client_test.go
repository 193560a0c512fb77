package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/findingjimoh/android-sms-gateway/internal/model"
)

func TestGatewayClient_GetMessages_DecodesContentVariants(t *testing.T) {
	t.Parallel()

	var gotAuth, gotQuery string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.RawQuery

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id":"m1","content":{"textMessage":{"text":"hi"}},"phoneNumbers":["+1555"]},
			{"id":"m2","content":{"dataMessage":{"data":"aGV5","port":53739}},"phoneNumbers":["+1666"],"isEncrypted":true}
		]`))
	}))
	defer srv.Close()

	c := mustClient(t, srv.URL)

	msgs, err := c.GetMessages(context.Background(), "tok-1", model.OrderLIFO)
	if err != nil {
		t.Fatalf("GetMessages() error: %v", err)
	}

	if gotAuth != "Bearer tok-1" {
		t.Fatalf("expected bearer token header, got %q", gotAuth)
	}
	if gotQuery != "order=LIFO" {
		t.Fatalf("expected order=LIFO query, got %q", gotQuery)
	}

	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}

	text, ok := msgs[0].Content.(model.TextContent)
	if !ok || text.Text != "hi" {
		t.Fatalf("expected text content %q, got %#v", "hi", msgs[0].Content)
	}

	data, ok := msgs[1].Content.(model.DataContent)
	if !ok || string(data.Data) != "hey" || data.Port != 53739 {
		t.Fatalf("expected data content, got %#v", msgs[1].Content)
	}
	if msgs[1].IsEncrypted == nil || !*msgs[1].IsEncrypted {
		t.Fatalf("expected isEncrypted=true, got %v", msgs[1].IsEncrypted)
	}
}

func TestGatewayClient_ErrorTaxonomy(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		status int
		check  func(error) bool
	}{
		{"401 is unauthorized", http.StatusUnauthorized, IsUnauthorized},
		{"409 is duplicate", http.StatusConflict, IsDuplicate},
		{"500 is transient", http.StatusInternalServerError, IsTransient},
		{"503 is server error", http.StatusServiceUnavailable, IsServerError},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			c := mustClient(t, srv.URL)

			err := c.PushInbox(context.Background(), "tok", []model.InboxItem{
				{PhoneNumber: "+1555", Body: "x", ReceivedAt: time.Now(), ExternalID: "sms_1"},
			})
			if err == nil {
				t.Fatalf("expected error for status %d", tc.status)
			}
			if !tc.check(err) {
				t.Fatalf("status %d misclassified: %v", tc.status, err)
			}
		})
	}
}

func TestGatewayClient_BadRequestIsNotTransient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad payload"))
	}))
	defer srv.Close()

	c := mustClient(t, srv.URL)

	err := c.PatchMessages(context.Background(), "tok", []MessagePatch{{ID: "m1", State: "Sent"}})
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if IsTransient(err) || IsDuplicate(err) || IsUnauthorized(err) {
		t.Fatalf("400 must be a permanent error, got: %v", err)
	}
	if !strings.Contains(err.Error(), `body="bad payload"`) {
		t.Fatalf("expected error to include body, got: %v", err)
	}
}

func TestGatewayClient_PushInbox_EncodesEpochMillis(t *testing.T) {
	t.Parallel()

	var captured []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := mustClient(t, srv.URL)

	receivedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	err := c.PushInbox(context.Background(), "tok", []model.InboxItem{
		{PhoneNumber: "+1555", Body: "hello", ReceivedAt: receivedAt, ExternalID: "sms_42"},
	})
	if err != nil {
		t.Fatalf("PushInbox() error: %v", err)
	}

	var wire []map[string]any
	if err := json.Unmarshal(captured, &wire); err != nil {
		t.Fatalf("failed to decode request json: %v body=%q", err, string(captured))
	}
	if len(wire) != 1 {
		t.Fatalf("expected 1 item, got %d", len(wire))
	}
	if wire[0]["externalId"] != "sms_42" {
		t.Fatalf("expected externalId sms_42, got %v", wire[0]["externalId"])
	}
	if int64(wire[0]["receivedAt"].(float64)) != receivedAt.UnixMilli() {
		t.Fatalf("expected receivedAt in epoch ms, got %v", wire[0]["receivedAt"])
	}
}

func TestGatewayClient_RegisterDevice_CarriesModeInBody(t *testing.T) {
	t.Parallel()

	var captured map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &captured)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"dev-1","token":"tok-1","login":"user","password":"pass"}`))
	}))
	defer srv.Close()

	c := mustClient(t, srv.URL)

	info, err := c.RegisterDevice(context.Background(), "rack/unit-7", "push-token", model.WithCredentials("user", "pass"))
	if err != nil {
		t.Fatalf("RegisterDevice() error: %v", err)
	}

	if captured["name"] != "rack/unit-7" || captured["pushToken"] != "push-token" {
		t.Fatalf("unexpected register body: %v", captured)
	}
	if captured["login"] != "user" || captured["password"] != "pass" {
		t.Fatalf("expected credentials in body, got: %v", captured)
	}

	want := model.RegistrationInfo{DeviceID: "dev-1", Login: "user", Password: "pass", AccessToken: "tok-1"}
	if info != want {
		t.Fatalf("expected %+v, got %+v", want, info)
	}
}

func TestGatewayClient_RegisterDevice_IncompleteResponse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"login":"user"}`))
	}))
	defer srv.Close()

	c := mustClient(t, srv.URL)

	_, err := c.RegisterDevice(context.Background(), "dev", "", model.Anonymous())
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "incomplete registration response") {
		t.Fatalf("expected incomplete-response error, got: %v", err)
	}
}

func TestGatewayClient_NetworkErrorIsTransient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c := mustClient(t, srv.URL)

	_, err := c.GetSettings(context.Background(), "tok")
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if !IsTransient(err) {
		t.Fatalf("network error must be transient, got: %v", err)
	}
}

func TestGatewayClient_CancelledContextIsNotTransient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := mustClient(t, srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.GetWebhooks(ctx, "tok")
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if IsTransient(err) {
		t.Fatalf("cancellation must not be transient, got: %v", err)
	}
}

func mustClient(t *testing.T, baseURL string) *GatewayClient {
	t.Helper()
	c, err := NewGatewayClient(baseURL)
	if err != nil {
		t.Fatalf("NewGatewayClient() error: %v", err)
	}
	return c
}
