package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/surgeonmatch/surgeonmatch/internal/shared/models"
)

const claimColumns = `id, claim_id, surgeon_id, patient_id, procedure_code, procedure_description,
	       claim_date, paid_amount, allowed_amount, place_of_service, created_at, updated_at`

func scanClaim(row interface{ Scan(...interface{}) error }) (*models.Claim, error) {
	var c models.Claim
	err := row.Scan(
		&c.ID, &c.ClaimID, &c.SurgeonID, &c.PatientID, &c.ProcedureCode, &c.ProcedureDescription,
		&c.ClaimDate, &c.PaidAmount, &c.AllowedAmount, &c.PlaceOfService, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateClaim persists a new claim.
func (db *DB) CreateClaim(ctx context.Context, c *models.Claim) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO claims
			(id, claim_id, surgeon_id, patient_id, procedure_code, procedure_description,
			 claim_date, paid_amount, allowed_amount, place_of_service, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := db.conn.ExecContext(ctx, query,
		c.ID, c.ClaimID, c.SurgeonID, c.PatientID, c.ProcedureCode, c.ProcedureDescription,
		c.ClaimDate, c.PaidAmount, c.AllowedAmount, c.PlaceOfService, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create claim: %w", err)
	}
	return nil
}

// GetClaim retrieves a claim by id.
func (db *DB) GetClaim(ctx context.Context, id string) (*models.Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM claims WHERE id = $1`

	c, err := scanClaim(db.conn.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return c, nil
}

// ListClaims returns claims, optionally filtered by surgeon, newest first.
func (db *DB) ListClaims(ctx context.Context, surgeonID string, limit, offset int) ([]*models.Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM claims`
	args := []interface{}{}
	if surgeonID != "" {
		args = append(args, surgeonID)
		query += " WHERE surgeon_id = $1"
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY claim_date DESC LIMIT $%d", len(args))
	args = append(args, offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	var claims []*models.Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("database error: %w", err)
		}
		claims = append(claims, c)
	}
	return claims, rows.Err()
}

// UpdateClaim updates an existing claim record.
func (db *DB) UpdateClaim(ctx context.Context, c *models.Claim) error {
	query := `
		UPDATE claims
		SET patient_id = $2, procedure_code = $3, procedure_description = $4,
		    claim_date = $5, paid_amount = $6, allowed_amount = $7, place_of_service = $8,
		    updated_at = NOW()
		WHERE id = $1
	`
	res, err := db.conn.ExecContext(ctx, query,
		c.ID, c.PatientID, c.ProcedureCode, c.ProcedureDescription,
		c.ClaimDate, c.PaidAmount, c.AllowedAmount, c.PlaceOfService)
	if err != nil {
		return fmt.Errorf("failed to update claim: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteClaim removes a claim by id.
func (db *DB) DeleteClaim(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM claims WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete claim: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
