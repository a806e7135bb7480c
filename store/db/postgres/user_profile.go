package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hrygo/manas/store"
)

func (d *DB) GetUserProfile(ctx context.Context, userID string) (*store.UserProfile, error) {
	query := `
		SELECT user_id, name, dietary_preference, learning_level, interests, location, latitude, longitude, created_ts, updated_ts
		FROM user_profile
		WHERE user_id = $1
	`
	var (
		p        store.UserProfile
		lat, lon sql.NullFloat64
	)
	err := d.db.QueryRowContext(ctx, query, userID).Scan(
		&p.UserID,
		&p.Name,
		&p.DietaryPreference,
		&p.LearningLevel,
		pq.Array(&p.Interests),
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
	var lat, lon sql.NullFloat64
	if p.HasCoordinates() {
		lat = sql.NullFloat64{Float64: *p.Latitude, Valid: true}
		lon = sql.NullFloat64{Float64: *p.Longitude, Valid: true}
	}

	query := `
		INSERT INTO user_profile (user_id, name, dietary_preference, learning_level, interests, location, latitude, longitude, created_ts, updated_ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id) DO UPDATE SET
			name = EXCLUDED.name,
			dietary_preference = EXCLUDED.dietary_preference,
			learning_level = EXCLUDED.learning_level,
			interests = EXCLUDED.interests,
			location = EXCLUDED.location,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			updated_ts = EXCLUDED.updated_ts
	`
	if _, err := d.db.ExecContext(ctx, query,
		p.UserID,
		p.Name,
		p.DietaryPreference,
		p.LearningLevel,
		pq.Array(interests),
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
