// internal/repository/postgres/nutrition_log_repo.go
package postgres

import (
	"context"
	"fmt"
	"time"

	"fitbridge-service/internal/domain/nutrition"
	xerrors "fitbridge-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

type NutritionLogRepository struct {
	db *pgxpool.Pool
}

func NewNutritionLogRepository(db *pgxpool.Pool) *NutritionLogRepository {
	return &NutritionLogRepository{db: db}
}

// CreateLog records a nutrition entry.
func (r *NutritionLogRepository) CreateLog(ctx context.Context, log *nutrition.Log) error {
	query := `
		INSERT INTO nutrition_logs (identity_id, food_name, calories, tags, consumed_on)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	return r.db.QueryRow(ctx, query,
		log.IdentityID, log.FoodName, log.Calories, log.Tags, log.ConsumedOn,
	).Scan(&log.ID, &log.CreatedAt)
}

// ListLogsByDate returns all entries for an identity on a calendar day.
func (r *NutritionLogRepository) ListLogsByDate(ctx context.Context, identityID int64, day time.Time) ([]*nutrition.Log, error) {
	query := `
		SELECT id, identity_id, food_name, calories, tags, consumed_on, created_at
		FROM nutrition_logs
		WHERE identity_id = $1 AND consumed_on = $2
		ORDER BY created_at
	`

	rows, err := r.db.Query(ctx, query, identityID, day)
	if err != nil {
		return nil, fmt.Errorf("failed to list nutrition logs: %w", err)
	}
	defer rows.Close()

	var logs []*nutrition.Log
	for rows.Next() {
		var l nutrition.Log
		if err := rows.Scan(
			&l.ID, &l.IdentityID, &l.FoodName, &l.Calories, &l.Tags, &l.ConsumedOn, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan nutrition log: %w", err)
		}
		logs = append(logs, &l)
	}

	return logs, rows.Err()
}

// SumCaloriesByDate returns the exact calorie total for a day.
func (r *NutritionLogRepository) SumCaloriesByDate(ctx context.Context, identityID int64, day time.Time) (float64, int, error) {
	query := `
		SELECT COALESCE(SUM(calories), 0), COUNT(*)
		FROM nutrition_logs
		WHERE identity_id = $1 AND consumed_on = $2
	`

	var total float64
	var count int
	if err := r.db.QueryRow(ctx, query, identityID, day).Scan(&total, &count); err != nil {
		return 0, 0, fmt.Errorf("failed to sum calories: %w", err)
	}
	return total, count, nil
}

// DeleteLog removes an entry owned by the identity.
func (r *NutritionLogRepository) DeleteLog(ctx context.Context, identityID, id int64) error {
	query := `DELETE FROM nutrition_logs WHERE id = $1 AND identity_id = $2`
	tag, err := r.db.Exec(ctx, query, id, identityID)
	if err != nil {
		return fmt.Errorf("failed to delete nutrition log: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}
