package database

import (
	"context"
	"fmt"

	"slotify/internal/models"
)

func (db *DB) CreateBlockedRange(ctx context.Context, br *models.BlockedRange) error {
	query := `INSERT INTO blocked_ranges (business_id, date, start_time, end_time, reason)
              VALUES (?, ?, ?, ?, ?)`
	result, err := db.ExecContext(ctx, query, br.BusinessID, br.Date, br.StartTime, br.EndTime, br.Reason)
	if err != nil {
		return fmt.Errorf("failed to create blocked range: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	br.ID = id
	return nil
}

func (db *DB) GetBlockedRanges(ctx context.Context, businessID int64, date string) ([]*models.BlockedRange, error) {
	query := `SELECT id, business_id, date, start_time, end_time, COALESCE(reason, '')
              FROM blocked_ranges WHERE business_id = ? AND date = ? ORDER BY start_time ASC`
	rows, err := db.QueryContext(ctx, query, businessID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to get blocked ranges: %w", err)
	}
	defer rows.Close()

	var ranges []*models.BlockedRange
	for rows.Next() {
		var br models.BlockedRange
		if err := rows.Scan(&br.ID, &br.BusinessID, &br.Date, &br.StartTime, &br.EndTime, &br.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan blocked range: %w", err)
		}
		ranges = append(ranges, &br)
	}
	return ranges, rows.Err()
}

func (db *DB) DeleteBlockedRange(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM blocked_ranges WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete blocked range: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
