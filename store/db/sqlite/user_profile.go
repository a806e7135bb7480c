package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hrygo/manas/store"
)

func (d *DB) GetUserProfile(ctx context.Context, userID string) (*store.UserProfile, error) {
	query := `
		SELECT user_id, name, dietary_preference, learning_level, interests, location, latitude, longitude, created_ts, updated_ts
		FROM user_profile
		WHERE user_id = ?`

	var (
		p         store.UserProfile
		interests string
		lat, lon  sql.NullFloat64
	)
	err := d.db.QueryRowContext(ctx, query, userID).Scan(
		&p.UserID,
		&p.Name,
		&p.DietaryPreference,
		&p.LearningLevel,
		&interests,
		&p.Location,
		&lat,
		&lon,
		&p.CreatedTs,
		&p.UpdatedTs,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user profile: %w", err)
	}

	if err := json.Unmarshal([]byte(interests), &p.Interests); err != nil {
		return nil, fmt.Errorf("failed to decode interests: %w", err)
	}
	if lat.Valid && lon.Valid {
		p.Latitude, p.Longitude = &lat.Float64, &lon.Float64
	}
	return &p, nil
}

func (d *DB) UpsertUserProfile(ctx context.Context, p *store.UserProfile) (*store.UserProfile, error) {
	interests := p.Interests
	if interests == nil {
		interests = []string{}
	}
	raw, err := json.Marshal(interests)
	if err != nil {
		return nil, fmt.Errorf("failed to encode interests: %w", err)
	}

	var lat, lon sql.NullFloat64
	if p.HasCoordinates() {
		lat = sql.NullFloat64{Float64: *p.Latitude, Valid: true}
		lon = sql.NullFloat64{Float64: *p.Longitude, Valid: true}
	}

	stmt := `
		INSERT INTO user_profile (user_id, name, dietary_preference, learning_level, interests, location, latitude, longitude, created_ts, updated_ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			name = excluded.name,
			dietary_preference = excluded.dietary_preference,
			learning_level = excluded.learning_level,
			interests = excluded.interests,
			location = excluded.location,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			updated_ts = excluded.updated_ts`
	if _, err := d.db.ExecContext(ctx, stmt,
		p.UserID,
		p.Name,
		p.DietaryPreference,
		p.LearningLevel,
		string(raw),
		p.Location,
		lat,
		lon,
		p.CreatedTs,
		p.UpdatedTs,
	); err != nil {
		return nil, fmt.Errorf("failed to upsert user profile: %w", err)
	}

	return d.GetUserProfile(ctx, p.UserID)
}
