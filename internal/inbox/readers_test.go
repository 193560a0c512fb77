package inbox

import (
	"context"
	"testing"
	"time"
)

type fakeContentStore struct {
	sms       []SMSRecord
	mms       []MMSRecord
	addresses map[int64][]string
	parts     map[int64][]MMSPart
}

func (f *fakeContentStore) SMSInboxPage(_ context.Context, limit, offset int) ([]SMSRecord, error) {
	return page(f.sms, limit, offset), nil
}

func (f *fakeContentStore) MMSInboxPage(_ context.Context, limit, offset int) ([]MMSRecord, error) {
	return page(f.mms, limit, offset), nil
}

func (f *fakeContentStore) MMSAddresses(_ context.Context, id int64) ([]string, error) {
	return f.addresses[id], nil
}

func (f *fakeContentStore) MMSParts(_ context.Context, id int64) ([]MMSPart, error) {
	return f.parts[id], nil
}

func page[T any](all []T, limit, offset int) []T {
	if offset >= len(all) {
		return nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end]
}

func TestSMSReader_NormalizesRecords(t *testing.T) {
	t.Parallel()

	store := &fakeContentStore{sms: []SMSRecord{
		{ID: 11, Address: "+1555", Body: "hello", Date: 1700000000000},
		{ID: 12, Address: "", Body: "orphan", Date: 1700000001000},
	}}

	items, err := NewSMSReader(store).ReadPage(context.Background(), 100, 0)
	if err != nil {
		t.Fatalf("ReadPage() error: %v", err)
	}

	if len(items) != 1 {
		t.Fatalf("expected the addressless row skipped, got %d items", len(items))
	}
	it := items[0]
	if it.ExternalID != "sms_11" {
		t.Fatalf("expected external id sms_11, got %q", it.ExternalID)
	}
	if it.PhoneNumber != "+1555" || it.Body != "hello" {
		t.Fatalf("unexpected item: %+v", it)
	}
	if !it.ReceivedAt.Equal(time.UnixMilli(1700000000000)) {
		t.Fatalf("expected epoch-ms date preserved, got %v", it.ReceivedAt)
	}
}

func TestMMSReader_ConvertsSecondsToMillis(t *testing.T) {
	t.Parallel()

	store := &fakeContentStore{
		mms:       []MMSRecord{{ID: 7, DateSec: 1700000000}},
		addresses: map[int64][]string{7: {"+1555"}},
		parts:     map[int64][]MMSPart{7: {{ContentType: "text/plain", Text: "hi"}}},
	}

	items, err := NewMMSReader(store).ReadPage(context.Background(), 100, 0)
	if err != nil {
		t.Fatalf("ReadPage() error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].ExternalID != "mms_7" {
		t.Fatalf("expected external id mms_7, got %q", items[0].ExternalID)
	}
	if !items[0].ReceivedAt.Equal(time.UnixMilli(1700000000000)) {
		t.Fatalf("expected seconds converted to millis, got %v", items[0].ReceivedAt)
	}
}

func TestMMSReader_AddressJoinsDistinctNonPlaceholder(t *testing.T) {
	t.Parallel()

	store := &fakeContentStore{
		mms: []MMSRecord{
			{ID: 1, DateSec: 1},
			{ID: 2, DateSec: 2},
		},
		addresses: map[int64][]string{
			1: {"+1555", "insert-address-token", "+1666", "+1555", ""},
			2: {"insert-address-token"},
		},
		parts: map[int64][]MMSPart{},
	}

	items, err := NewMMSReader(store).ReadPage(context.Background(), 100, 0)
	if err != nil {
		t.Fatalf("ReadPage() error: %v", err)
	}

	if len(items) != 1 {
		t.Fatalf("expected the record without usable addresses skipped, got %d", len(items))
	}
	if items[0].PhoneNumber != "+1555;+1666" {
		t.Fatalf("expected distinct addresses joined with ';', got %q", items[0].PhoneNumber)
	}
}

func TestMMSReader_BodyFallbackChain(t *testing.T) {
	t.Parallel()

	store := &fakeContentStore{
		mms: []MMSRecord{
			{ID: 1, DateSec: 1, Subject: "ignored"},
			{ID: 2, DateSec: 2, Subject: "vacation pics"},
			{ID: 3, DateSec: 3},
		},
		addresses: map[int64][]string{
			1: {"+1"}, 2: {"+2"}, 3: {"+3"},
		},
		parts: map[int64][]MMSPart{
			1: {
				{ContentType: "image/jpeg", Text: ""},
				{ContentType: "text/plain", Text: "the actual text"},
			},
			2: {{ContentType: "image/jpeg", Text: ""}},
		},
	}

	items, err := NewMMSReader(store).ReadPage(context.Background(), 100, 0)
	if err != nil {
		t.Fatalf("ReadPage() error: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}

	if items[0].Body != "the actual text" {
		t.Fatalf("expected text/plain part preferred, got %q", items[0].Body)
	}
	if items[1].Body != "[MMS: vacation pics]" {
		t.Fatalf("expected subject fallback, got %q", items[1].Body)
	}
	if items[2].Body != "[MMS: media message]" {
		t.Fatalf("expected generic placeholder, got %q", items[2].Body)
	}
}
