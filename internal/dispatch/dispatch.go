package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/findingjimoh/android-sms-gateway/internal/client"
	"github.com/findingjimoh/android-sms-gateway/internal/model"
)

const moduleName = "dispatch"

// MessageStore is the local send queue the pipeline feeds. EnqueueSendRequest
// must be idempotent on the remote message id so that overlapping pulls can
// never create two send requests for one message.
type MessageStore interface {
	EnqueueSendRequest(ctx context.Context, req model.SendRequest) error
	GetSendState(ctx context.Context, messageID string) (*model.LocalSendState, error)
	ProcessingOrder(ctx context.Context) (model.ProcessingOrder, error)
}

// API is the slice of the gateway client the pipeline uses.
type API interface {
	GetMessages(ctx context.Context, token string, order model.ProcessingOrder) ([]model.RemoteMessage, error)
	PatchMessages(ctx context.Context, token string, patches []client.MessagePatch) error
}

// Registry resolves the current device identity.
type Registry interface {
	Info(ctx context.Context) (model.RegistrationInfo, error)
}

// ReportCache remembers the last state payload reported per message so
// redundant PATCHes can be skipped. May be nil.
type ReportCache interface {
	LastReported(ctx context.Context, messageID string) (string, error)
	StoreReported(ctx context.Context, messageID, payload string) error
}

type Outcome string

const (
	OutcomeEnqueued Outcome = "enqueued"
	OutcomeResynced Outcome = "resynced"
	OutcomeFailed   Outcome = "failed"
)

// ItemResult is the per-message outcome of one pull batch.
type ItemResult struct {
	MessageID string
	Outcome   Outcome
	Err       error
}

// PullReport aggregates per-item results; a bad item never aborts the batch.
type PullReport struct {
	Results []ItemResult
}

func (r PullReport) count(o Outcome) int {
	n := 0
	for _, it := range r.Results {
		if it.Outcome == o {
			n++
		}
	}
	return n
}

func (r PullReport) Enqueued() int { return r.count(OutcomeEnqueued) }
func (r PullReport) Resynced() int { return r.count(OutcomeResynced) }
func (r PullReport) Failed() int   { return r.count(OutcomeFailed) }

// Pipeline pulls remote-queued messages into the local sender and reports
// delivery state back.
type Pipeline struct {
	store MessageStore
	api   API
	reg   Registry
	cache ReportCache
	log   *slog.Logger
	now   func() time.Time
}

func NewPipeline(store MessageStore, api API, reg Registry, cache ReportCache, log *slog.Logger) *Pipeline {
	return &Pipeline{
		store: store,
		api:   api,
		reg:   reg,
		cache: cache,
		log:   log,
		now:   time.Now,
	}
}

// Pull fetches the remote queue and enqueues every message not yet known
// locally. Messages with an existing send state are resynced instead of
// re-enqueued. The returned error covers run-level failures only.
func (p *Pipeline) Pull(ctx context.Context) (PullReport, error) {
	info, err := p.reg.Info(ctx)
	if err != nil {
		return PullReport{}, err
	}

	order, err := p.store.ProcessingOrder(ctx)
	if err != nil {
		return PullReport{}, fmt.Errorf("failed to read processing order: %w", err)
	}

	msgs, err := p.api.GetMessages(ctx, info.AccessToken, order)
	if err != nil {
		return PullReport{}, fmt.Errorf("failed to fetch messages: %w", err)
	}

	var report PullReport
	for _, m := range msgs {
		res := p.processMessage(ctx, info.AccessToken, m)
		if res.Err != nil {
			p.log.Error("failed to process message",
				"module", moduleName,
				"message_id", m.ID,
				"content", contentSummary(m.Content),
				"outcome", string(res.Outcome),
				"error", res.Err)
		}
		report.Results = append(report.Results, res)
	}

	p.log.Info("pull completed", "module", moduleName,
		"fetched", len(msgs),
		"enqueued", report.Enqueued(),
		"resynced", report.Resynced(),
		"failed", report.Failed())
	return report, nil
}

func (p *Pipeline) processMessage(ctx context.Context, token string, m model.RemoteMessage) ItemResult {
	state, err := p.store.GetSendState(ctx, m.ID)
	if err != nil {
		return ItemResult{MessageID: m.ID, Outcome: OutcomeFailed, Err: err}
	}

	if state != nil {
		// Already accepted locally: push the current state upstream again
		// instead of creating a second send request.
		err := p.report(ctx, token, *state)
		return ItemResult{MessageID: m.ID, Outcome: OutcomeResynced, Err: err}
	}

	req, err := buildSendRequest(m, p.now())
	if err != nil {
		return ItemResult{MessageID: m.ID, Outcome: OutcomeFailed, Err: err}
	}
	if err := p.store.EnqueueSendRequest(ctx, req); err != nil {
		return ItemResult{MessageID: m.ID, Outcome: OutcomeFailed, Err: err}
	}
	return ItemResult{MessageID: m.ID, Outcome: OutcomeEnqueued}
}

func buildSendRequest(m model.RemoteMessage, now time.Time) (model.SendRequest, error) {
	if m.Content == nil {
		return model.SendRequest{}, fmt.Errorf("message %s has no content", m.ID)
	}
	if len(m.PhoneNumbers) == 0 {
		return model.SendRequest{}, fmt.Errorf("message %s has no recipients", m.ID)
	}

	encrypted := false
	if m.IsEncrypted != nil {
		encrypted = *m.IsEncrypted
	}
	createdAt := now
	if m.CreatedAt != nil {
		createdAt = *m.CreatedAt
	}
	withReport := true
	if m.WithDeliveryReport != nil {
		withReport = *m.WithDeliveryReport
	}

	return model.SendRequest{
		ID:           uuid.NewString(),
		Source:       model.SourceCloud,
		MessageID:    m.ID,
		Content:      m.Content,
		PhoneNumbers: m.PhoneNumbers,
		IsEncrypted:  encrypted,
		CreatedAt:    createdAt,
		Params: model.SendParams{
			WithDeliveryReport: withReport,
			// Cloud-originated numbers were validated server-side already.
			SkipPhoneValidation: true,
			SimNumber:           m.SimNumber,
			ValidUntil:          m.ValidUntil,
			Priority:            m.Priority,
		},
	}, nil
}

// ReportState maps a local send state to a remote PATCH and sends it.
// Callers treat it as fire-and-forget; failures are for their retry wrapper.
func (p *Pipeline) ReportState(ctx context.Context, state model.LocalSendState) error {
	info, err := p.reg.Info(ctx)
	if err != nil {
		return err
	}
	return p.report(ctx, info.AccessToken, state)
}

func (p *Pipeline) report(ctx context.Context, token string, state model.LocalSendState) error {
	patch := buildPatch(state)

	payload, err := json.Marshal(patch)
	if err != nil {
		return err
	}
	fingerprint := string(payload)

	if p.cache != nil {
		last, err := p.cache.LastReported(ctx, state.MessageID)
		if err != nil {
			p.log.Warn("report cache read failed", "module", moduleName, "error", err)
		} else if last == fingerprint {
			p.log.Debug("state unchanged since last report, skipping",
				"module", moduleName, "message_id", state.MessageID)
			return nil
		}
	}

	if err := p.api.PatchMessages(ctx, token, []client.MessagePatch{patch}); err != nil {
		return err
	}

	if p.cache != nil {
		if err := p.cache.StoreReported(ctx, state.MessageID, fingerprint); err != nil {
			p.log.Warn("report cache write failed", "module", moduleName, "error", err)
		}
	}
	return nil
}

func buildPatch(state model.LocalSendState) client.MessagePatch {
	recipients := make([]client.RecipientPatch, 0, len(state.Recipients))
	for _, r := range state.Recipients {
		recipients = append(recipients, client.RecipientPatch{
			PhoneNumber: r.PhoneNumber,
			State:       string(r.State),
			Error:       r.Error,
		})
	}

	states := make(map[string]int64, len(state.States))
	for _, s := range state.States {
		states[string(s.State)] = s.UpdatedAt.UnixMilli()
	}

	return client.MessagePatch{
		ID:         state.MessageID,
		State:      string(state.State),
		Recipients: recipients,
		States:     states,
	}
}

func contentSummary(c model.MessageContent) string {
	switch v := c.(type) {
	case model.TextContent:
		return fmt.Sprintf("text(%d chars)", len(v.Text))
	case model.DataContent:
		return fmt.Sprintf("data(%d bytes, port %d)", len(v.Data), v.Port)
	default:
		return "none"
	}
}
