package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/findingjimoh/android-sms-gateway/internal/model"
)

const processingOrderKey = "processing_order"

// PostgresMessageStore is the local send queue. Inserts are keyed on the
// remote message id, so two overlapping pulls can never enqueue one message
// twice.
type PostgresMessageStore struct {
	db *sql.DB
}

func NewPostgresMessageStore(db *sql.DB) *PostgresMessageStore {
	return &PostgresMessageStore{db: db}
}

func (r *PostgresMessageStore) EnqueueSendRequest(ctx context.Context, req model.SendRequest) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var contentText sql.NullString
	var contentData []byte
	var contentPort sql.NullInt32
	switch c := req.Content.(type) {
	case model.TextContent:
		contentText = sql.NullString{String: c.Text, Valid: true}
	case model.DataContent:
		contentData = c.Data
		contentPort = sql.NullInt32{Int32: int32(c.Port), Valid: true}
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO messages (
			id, message_id, source, content_text, content_data, content_port,
			is_encrypted, created_at, with_delivery_report, skip_phone_validation,
			sim_number, valid_until, priority, state
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 'Pending')
		ON CONFLICT (message_id) DO NOTHING
	`,
		req.ID, req.MessageID, string(req.Source), contentText, contentData, contentPort,
		req.IsEncrypted, req.CreatedAt, req.Params.WithDeliveryReport, req.Params.SkipPhoneValidation,
		req.Params.SimNumber, req.Params.ValidUntil, req.Params.Priority,
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Lost the race to another pull; the message is already queued.
		return tx.Commit()
	}

	for _, phone := range req.PhoneNumbers {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO message_recipients (message_id, phone_number, state)
			VALUES ($1, $2, 'Pending')
		`, req.MessageID, phone); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO message_states (message_id, state, updated_at)
		VALUES ($1, 'Pending', $2)
	`, req.MessageID, req.CreatedAt); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *PostgresMessageStore) GetSendState(ctx context.Context, messageID string) (*model.LocalSendState, error) {
	state := model.LocalSendState{MessageID: messageID}

	var st string
	err := r.db.QueryRowContext(ctx, `
		SELECT state FROM messages WHERE message_id = $1
	`, messageID).Scan(&st)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	state.State = model.MessageState(st)

	rows, err := r.db.QueryContext(ctx, `
		SELECT phone_number, state, error
		FROM message_recipients
		WHERE message_id = $1
		ORDER BY id
	`, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var rec model.RecipientState
		var recState string
		var recErr sql.NullString
		if err := rows.Scan(&rec.PhoneNumber, &recState, &recErr); err != nil {
			return nil, err
		}
		rec.State = model.MessageState(recState)
		if recErr.Valid {
			s := recErr.String
			rec.Error = &s
		}
		state.Recipients = append(state.Recipients, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	histRows, err := r.db.QueryContext(ctx, `
		SELECT state, updated_at
		FROM message_states
		WHERE message_id = $1
		ORDER BY updated_at
	`, messageID)
	if err != nil {
		return nil, err
	}
	defer histRows.Close()

	for histRows.Next() {
		var entry model.StateEntry
		var entryState string
		if err := histRows.Scan(&entryState, &entry.UpdatedAt); err != nil {
			return nil, err
		}
		entry.State = model.MessageState(entryState)
		state.States = append(state.States, entry)
	}
	return &state, histRows.Err()
}

func (r *PostgresMessageStore) ProcessingOrder(ctx context.Context) (model.ProcessingOrder, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `
		SELECT value FROM settings WHERE key = $1
	`, processingOrderKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return model.OrderFIFO, nil
	}
	if err != nil {
		return "", err
	}
	if value == string(model.OrderLIFO) {
		return model.OrderLIFO, nil
	}
	return model.OrderFIFO, nil
}
