package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/clawdshartavenger/alta-parking-app/internal/model"
)

// GetCredentials loads the credential set for service. The second return is
// false when no record exists.
func (s *Store) GetCredentials(ctx context.Context, service string) (model.Credentials, bool, error) {
	service = strings.TrimSpace(service)
	if service == "" {
		return model.Credentials{}, false, errors.New("service is required")
	}

	var (
		out       model.Credentials
		updatedAt int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT service, email, password, season_pass_code, license_plate, updated_at
		FROM credentials WHERE service = ?
	`, service).Scan(&out.Service, &out.Email, &out.Password, &out.SeasonPassCode, &out.LicensePlate, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Credentials{}, false, nil
		}
		return model.Credentials{}, false, err
	}

	if out.Password, err = s.unseal(out.Password); err != nil {
		return model.Credentials{}, false, err
	}
	if out.SeasonPassCode, err = s.unseal(out.SeasonPassCode); err != nil {
		return model.Credentials{}, false, err
	}
	out.UpdatedAt = time.UnixMilli(updatedAt)
	return out, true, nil
}

func (s *Store) UpsertCredentials(ctx context.Context, c model.Credentials) (model.Credentials, error) {
	c.Service = strings.TrimSpace(c.Service)
	if c.Service == "" {
		return model.Credentials{}, errors.New("service is required")
	}

	password, err := s.seal(c.Password)
	if err != nil {
		return model.Credentials{}, err
	}
	passCode, err := s.seal(c.SeasonPassCode)
	if err != nil {
		return model.Credentials{}, err
	}

	now := time.Now().UnixMilli()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO credentials (service, email, password, season_pass_code, license_plate, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(service) DO UPDATE SET
			email = excluded.email,
			password = excluded.password,
			season_pass_code = excluded.season_pass_code,
			license_plate = excluded.license_plate,
			updated_at = excluded.updated_at
	`, c.Service, c.Email, password, passCode, c.LicensePlate, now, now)
	if err != nil {
		return model.Credentials{}, err
	}
	c.UpdatedAt = time.UnixMilli(now)
	return c, nil
}

func (s *Store) DeleteCredentials(ctx context.Context, service string) error {
	service = strings.TrimSpace(service)
	if service == "" {
		return errors.New("service is required")
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM credentials WHERE service = ?`, service)
	return err
}
