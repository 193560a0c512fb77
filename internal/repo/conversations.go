package repo

import (
	"context"
	"database/sql"
	"regexp"
	"sort"
)

var phoneNormalizer = regexp.MustCompile(`[^+\d]`)

// NormalizePhone strips everything but digits and a leading plus, matching
// how conversations are grouped.
func NormalizePhone(phone string) string {
	return phoneNormalizer.ReplaceAllString(phone, "")
}

// ConversationPreview is one conversation in the overview list. Date is in
// epoch milliseconds.
type ConversationPreview struct {
	Address      string `json:"address"`
	LastMessage  string `json:"lastMessage"`
	Date         int64  `json:"date"`
	MessageCount int    `json:"messageCount"`
}

// ThreadMessage is one message inside a conversation thread.
type ThreadMessage struct {
	Body    string `json:"body"`
	Date    int64  `json:"date"`
	Type    string `json:"type"`
	Address string `json:"address"`
}

// PostgresConversationRepo serves the read-only conversations API from the
// local SMS store.
type PostgresConversationRepo struct {
	db *sql.DB
}

func NewPostgresConversationRepo(db *sql.DB) *PostgresConversationRepo {
	return &PostgresConversationRepo{db: db}
}

// Conversations groups the SMS store by normalized address, newest first.
// Grouping happens here rather than in SQL because addresses only match
// after normalization.
func (r *PostgresConversationRepo) Conversations(ctx context.Context, limit, offset int) ([]ConversationPreview, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT address, body, received_at
		FROM sms_messages
		ORDER BY received_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	previews := map[string]*ConversationPreview{}
	for rows.Next() {
		var address, body string
		var date int64
		if err := rows.Scan(&address, &body, &date); err != nil {
			return nil, err
		}
		if address == "" {
			continue
		}

		key := NormalizePhone(address)
		if p, ok := previews[key]; ok {
			p.MessageCount++
			continue
		}
		previews[key] = &ConversationPreview{
			Address:      address,
			LastMessage:  body,
			Date:         date,
			MessageCount: 1,
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]ConversationPreview, 0, len(previews))
	for _, p := range previews {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })

	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// Thread returns the messages exchanged with one phone number, newest first.
func (r *PostgresConversationRepo) Thread(ctx context.Context, phone string, limit, offset int) ([]ThreadMessage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT body, received_at, msg_type, address
		FROM sms_messages
		WHERE address LIKE '%' || $1 || '%'
		ORDER BY received_at DESC
		LIMIT $2 OFFSET $3
	`, NormalizePhone(phone), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanThreadMessages(rows)
}

// Recent returns inbound messages received at or after `since` (epoch ms),
// newest first.
func (r *PostgresConversationRepo) Recent(ctx context.Context, since int64, limit int) ([]ThreadMessage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT body, received_at, msg_type, address
		FROM sms_messages
		WHERE msg_type = 'inbox' AND received_at >= $1
		ORDER BY received_at DESC
		LIMIT $2
	`, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanThreadMessages(rows)
}

func scanThreadMessages(rows *sql.Rows) ([]ThreadMessage, error) {
	var out []ThreadMessage
	for rows.Next() {
		var m ThreadMessage
		var msgType string
		if err := rows.Scan(&m.Body, &m.Date, &msgType, &m.Address); err != nil {
			return nil, err
		}
		switch msgType {
		case "sent":
			m.Type = "sent"
		case "inbox":
			m.Type = "received"
		default:
			m.Type = "unknown"
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
