package inbox

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/findingjimoh/android-sms-gateway/internal/model"
)

// Placeholder the platform stores for MMS recipients that were never
// resolved to a real address. Filtered out during normalization.
const mmsAddressPlaceholder = "insert-address-token"

const mmsAddressSeparator = ";"

// SMSRecord is a raw inbound SMS row. Date is in epoch milliseconds.
type SMSRecord struct {
	ID      int64
	Address string
	Body    string
	Date    int64
}

// MMSRecord is a raw inbound MMS row. DateSec is in epoch seconds, the unit
// the MMS store uses.
type MMSRecord struct {
	ID      int64
	DateSec int64
	Subject string
}

// MMSPart is one body part of an MMS message.
type MMSPart struct {
	ContentType string
	Text        string
}

// ContentStore is the read-only view of the local inbound message store.
type ContentStore interface {
	SMSInboxPage(ctx context.Context, limit, offset int) ([]SMSRecord, error)
	MMSInboxPage(ctx context.Context, limit, offset int) ([]MMSRecord, error)
	MMSAddresses(ctx context.Context, mmsID int64) ([]string, error)
	MMSParts(ctx context.Context, mmsID int64) ([]MMSPart, error)
}

// Reader produces one class of inbox items page by page, already normalized
// to the common InboxItem shape.
type Reader interface {
	Class() string
	ReadPage(ctx context.Context, limit, offset int) ([]model.InboxItem, error)
}

type smsReader struct {
	store ContentStore
}

// NewSMSReader reads inbound SMS rows. Rows without an address are skipped.
func NewSMSReader(store ContentStore) Reader {
	return &smsReader{store: store}
}

func (r *smsReader) Class() string { return "sms" }

func (r *smsReader) ReadPage(ctx context.Context, limit, offset int) ([]model.InboxItem, error) {
	records, err := r.store.SMSInboxPage(ctx, limit, offset)
	if err != nil {
		return nil, err
	}

	items := make([]model.InboxItem, 0, len(records))
	for _, rec := range records {
		if rec.Address == "" {
			continue
		}
		items = append(items, model.InboxItem{
			PhoneNumber: rec.Address,
			Body:        rec.Body,
			ReceivedAt:  time.UnixMilli(rec.Date),
			ExternalID:  fmt.Sprintf("sms_%d", rec.ID),
		})
	}
	return items, nil
}

type mmsReader struct {
	store ContentStore
}

// NewMMSReader reads inbound MMS rows, resolving addresses and text bodies
// from the associated record tables. Rows without a single usable address
// are skipped.
func NewMMSReader(store ContentStore) Reader {
	return &mmsReader{store: store}
}

func (r *mmsReader) Class() string { return "mms" }

func (r *mmsReader) ReadPage(ctx context.Context, limit, offset int) ([]model.InboxItem, error) {
	records, err := r.store.MMSInboxPage(ctx, limit, offset)
	if err != nil {
		return nil, err
	}

	items := make([]model.InboxItem, 0, len(records))
	for _, rec := range records {
		address, err := r.address(ctx, rec.ID)
		if err != nil {
			return nil, err
		}
		if address == "" {
			continue
		}

		body, err := r.body(ctx, rec)
		if err != nil {
			return nil, err
		}

		items = append(items, model.InboxItem{
			PhoneNumber: address,
			Body:        body,
			// The MMS store keeps dates in seconds.
			ReceivedAt: time.UnixMilli(rec.DateSec * 1000),
			ExternalID: fmt.Sprintf("mms_%d", rec.ID),
		})
	}
	return items, nil
}

func (r *mmsReader) address(ctx context.Context, mmsID int64) (string, error) {
	raw, err := r.store.MMSAddresses(ctx, mmsID)
	if err != nil {
		return "", err
	}

	seen := make(map[string]struct{}, len(raw))
	var distinct []string
	for _, addr := range raw {
		if strings.TrimSpace(addr) == "" || addr == mmsAddressPlaceholder {
			continue
		}
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		distinct = append(distinct, addr)
	}
	return strings.Join(distinct, mmsAddressSeparator), nil
}

// body resolves the MMS text with the fixed fallback chain: first text/plain
// part, then the subject, then a generic media placeholder.
func (r *mmsReader) body(ctx context.Context, rec MMSRecord) (string, error) {
	parts, err := r.store.MMSParts(ctx, rec.ID)
	if err != nil {
		return "", err
	}

	for _, part := range parts {
		if part.ContentType == "text/plain" && strings.TrimSpace(part.Text) != "" {
			return part.Text, nil
		}
	}
	if rec.Subject != "" {
		return fmt.Sprintf("[MMS: %s]", rec.Subject), nil
	}
	return "[MMS: media message]", nil
}
