package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/surgeonmatch/surgeonmatch/internal/shared/models"
)

// SurgeonFilter narrows ListSurgeons results. Zero values mean "any".
type SurgeonFilter struct {
	Specialty string
	State     string
	City      string
}

const surgeonColumns = `id, npi, first_name, last_name, specialty_code, specialty_description,
	       address_line1, address_line2, city, state, zip_code, latitude, longitude,
	       accepts_medicare, is_active, total_claims, average_quality_score,
	       created_at, updated_at`

func scanSurgeon(row interface{ Scan(...interface{}) error }) (*models.Surgeon, error) {
	var s models.Surgeon
	err := row.Scan(
		&s.ID, &s.NPI, &s.FirstName, &s.LastName, &s.SpecialtyCode, &s.SpecialtyDescription,
		&s.AddressLine1, &s.AddressLine2, &s.City, &s.State, &s.ZipCode, &s.Latitude, &s.Longitude,
		&s.AcceptsMedicare, &s.IsActive, &s.TotalClaims, &s.AverageQualityScore,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateSurgeon persists a new surgeon.
func (db *DB) CreateSurgeon(ctx context.Context, s *models.Surgeon) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO surgeons
			(id, npi, first_name, last_name, specialty_code, specialty_description,
			 address_line1, address_line2, city, state, zip_code, latitude, longitude,
			 accepts_medicare, is_active, total_claims, average_quality_score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	_, err := db.conn.ExecContext(ctx, query,
		s.ID, s.NPI, s.FirstName, s.LastName, s.SpecialtyCode, s.SpecialtyDescription,
		s.AddressLine1, s.AddressLine2, s.City, s.State, s.ZipCode, s.Latitude, s.Longitude,
		s.AcceptsMedicare, s.IsActive, s.TotalClaims, s.AverageQualityScore, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create surgeon: %w", err)
	}
	return nil
}

// GetSurgeon retrieves a surgeon by id.
func (db *DB) GetSurgeon(ctx context.Context, id string) (*models.Surgeon, error) {
	query := `SELECT ` + surgeonColumns + ` FROM surgeons WHERE id = $1`

	s, err := scanSurgeon(db.conn.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return s, nil
}

// GetSurgeonByNPI retrieves a surgeon by National Provider Identifier.
func (db *DB) GetSurgeonByNPI(ctx context.Context, npi string) (*models.Surgeon, error) {
	query := `SELECT ` + surgeonColumns + ` FROM surgeons WHERE npi = $1`

	s, err := scanSurgeon(db.conn.QueryRowContext(ctx, query, npi))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return s, nil
}

// ListSurgeons returns surgeons matching the filter, newest first.
func (db *DB) ListSurgeons(ctx context.Context, filter SurgeonFilter, limit, offset int) ([]*models.Surgeon, error) {
	var where []string
	var args []interface{}

	add := func(clause string, val interface{}) {
		args = append(args, val)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if filter.Specialty != "" {
		add("specialty_code = $%d", filter.Specialty)
	}
	if filter.State != "" {
		add("state = $%d", filter.State)
	}
	if filter.City != "" {
		add("city = $%d", filter.City)
	}

	query := `SELECT ` + surgeonColumns + ` FROM surgeons`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))
	args = append(args, offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	var surgeons []*models.Surgeon
	for rows.Next() {
		s, err := scanSurgeon(rows)
		if err != nil {
			return nil, fmt.Errorf("database error: %w", err)
		}
		surgeons = append(surgeons, s)
	}
	return surgeons, rows.Err()
}

// UpdateSurgeon updates an existing surgeon record.
func (db *DB) UpdateSurgeon(ctx context.Context, s *models.Surgeon) error {
	query := `
		UPDATE surgeons
		SET first_name = $2, last_name = $3, specialty_code = $4, specialty_description = $5,
		    address_line1 = $6, address_line2 = $7, city = $8, state = $9, zip_code = $10,
		    latitude = $11, longitude = $12, accepts_medicare = $13, is_active = $14,
		    updated_at = NOW()
		WHERE id = $1
	`
	res, err := db.conn.ExecContext(ctx, query,
		s.ID, s.FirstName, s.LastName, s.SpecialtyCode, s.SpecialtyDescription,
		s.AddressLine1, s.AddressLine2, s.City, s.State, s.ZipCode,
		s.Latitude, s.Longitude, s.AcceptsMedicare, s.IsActive)
	if err != nil {
		return fmt.Errorf("failed to update surgeon: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSurgeon removes a surgeon by id.
func (db *DB) DeleteSurgeon(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM surgeons WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete surgeon: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
