package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/findingjimoh/android-sms-gateway/internal/model"
)

const pushTokenKey = "push_token"

// PostgresRegistrationStore persists the single device identity. Save is an
// upsert of every field, so a replacement is atomic.
type PostgresRegistrationStore struct {
	db *sql.DB
}

func NewPostgresRegistrationStore(db *sql.DB) *PostgresRegistrationStore {
	return &PostgresRegistrationStore{db: db}
}

func (r *PostgresRegistrationStore) Load(ctx context.Context) (*model.RegistrationInfo, error) {
	var info model.RegistrationInfo
	err := r.db.QueryRowContext(ctx, `
		SELECT device_id, login, password, access_token
		FROM registration
		WHERE id = 1
	`).Scan(&info.DeviceID, &info.Login, &info.Password, &info.AccessToken)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (r *PostgresRegistrationStore) Save(ctx context.Context, info model.RegistrationInfo) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO registration (id, device_id, login, password, access_token, updated_at)
		VALUES (1, $1, $2, $3, $4, now())
		ON CONFLICT (id) DO UPDATE SET
			device_id = excluded.device_id,
			login = excluded.login,
			password = excluded.password,
			access_token = excluded.access_token,
			updated_at = now()
	`, info.DeviceID, info.Login, info.Password, info.AccessToken)
	return err
}

func (r *PostgresRegistrationStore) LoadPushToken(ctx context.Context) (string, error) {
	var token string
	err := r.db.QueryRowContext(ctx, `
		SELECT value FROM settings WHERE key = $1
	`, pushTokenKey).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return token, err
}

func (r *PostgresRegistrationStore) SavePushToken(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settings (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, pushTokenKey, token)
	return err
}
