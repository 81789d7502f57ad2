package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"slotify/internal/models"
)

func (db *DB) CreateService(ctx context.Context, s *models.Service) error {
	query := `INSERT INTO services (business_id, name, duration_min, price, deposit_amount, active, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query, s.BusinessID, s.Name, s.DurationMin, s.Price, s.DepositAmount, s.Active, now, now)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	s.ID = id
	s.CreatedAt = now
	s.UpdatedAt = now
	return nil
}

func (db *DB) GetService(ctx context.Context, id int64) (*models.Service, error) {
	query := `SELECT id, business_id, name, duration_min, price, deposit_amount, active, created_at, updated_at
              FROM services WHERE id = ?`
	var s models.Service
	err := db.QueryRowContext(ctx, query, id).Scan(
		&s.ID, &s.BusinessID, &s.Name, &s.DurationMin, &s.Price, &s.DepositAmount, &s.Active, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get service: %w", err)
	}
	return &s, nil
}

func (db *DB) GetActiveServices(ctx context.Context, businessID int64) ([]*models.Service, error) {
	query := `SELECT id, business_id, name, duration_min, price, deposit_amount, active, created_at, updated_at
              FROM services WHERE business_id = ? AND active = 1 ORDER BY name ASC`
	rows, err := db.QueryContext(ctx, query, businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to get services: %w", err)
	}
	defer rows.Close()

	var services []*models.Service
	for rows.Next() {
		var s models.Service
		if err := rows.Scan(&s.ID, &s.BusinessID, &s.Name, &s.DurationMin, &s.Price, &s.DepositAmount, &s.Active, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan service: %w", err)
		}
		services = append(services, &s)
	}
	return services, rows.Err()
}

// DeactivateService hides the service from new bookings. Rows already
// referencing it keep their copied name and duration.
func (db *DB) DeactivateService(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx,
		`UPDATE services SET active = 0, updated_at = ? WHERE id = ?`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to deactivate service: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
