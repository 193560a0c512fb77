package repo

import (
	"context"
	"database/sql"

	"github.com/findingjimoh/android-sms-gateway/internal/inbox"
)

// PostgresContentStore is the read-only inbound message store the inbox
// readers page over.
type PostgresContentStore struct {
	db *sql.DB
}

func NewPostgresContentStore(db *sql.DB) *PostgresContentStore {
	return &PostgresContentStore{db: db}
}

func (r *PostgresContentStore) SMSInboxPage(ctx context.Context, limit, offset int) ([]inbox.SMSRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, address, body, received_at
		FROM sms_messages
		WHERE msg_type = 'inbox'
		ORDER BY received_at ASC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []inbox.SMSRecord
	for rows.Next() {
		var rec inbox.SMSRecord
		if err := rows.Scan(&rec.ID, &rec.Address, &rec.Body, &rec.Date); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *PostgresContentStore) MMSInboxPage(ctx context.Context, limit, offset int) ([]inbox.MMSRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, received_at_sec, subject
		FROM mms_messages
		ORDER BY received_at_sec ASC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []inbox.MMSRecord
	for rows.Next() {
		var rec inbox.MMSRecord
		if err := rows.Scan(&rec.ID, &rec.DateSec, &rec.Subject); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *PostgresContentStore) MMSAddresses(ctx context.Context, mmsID int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT address FROM mms_addresses WHERE mms_id = $1 ORDER BY id
	`, mmsID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var addresses []string
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, err
		}
		addresses = append(addresses, addr)
	}
	return addresses, rows.Err()
}

func (r *PostgresContentStore) MMSParts(ctx context.Context, mmsID int64) ([]inbox.MMSPart, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT content_type, COALESCE(text, '')
		FROM mms_parts
		WHERE mms_id = $1
		ORDER BY id
	`, mmsID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var parts []inbox.MMSPart
	for rows.Next() {
		var part inbox.MMSPart
		if err := rows.Scan(&part.ContentType, &part.Text); err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}
	return parts, rows.Err()
}
