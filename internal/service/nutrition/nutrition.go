// internal/service/nutrition/nutrition.go
package nutrition

import (
	"context"
	"fmt"
	"math"
	"time"

	"fitbridge-service/internal/domain/nutrition"
	xerrors "fitbridge-service/internal/pkg/errors"

	"go.uber.org/zap"
)

// LogRepository is the persistence contract for nutrition entries.
type LogRepository interface {
	CreateLog(ctx context.Context, log *nutrition.Log) error
	ListLogsByDate(ctx context.Context, identityID int64, day time.Time) ([]*nutrition.Log, error)
	SumCaloriesByDate(ctx context.Context, identityID int64, day time.Time) (float64, int, error)
	DeleteLog(ctx context.Context, identityID, id int64) error
}

type NutritionService struct {
	repo   LogRepository
	logger *zap.Logger
}

func NewNutritionService(repo LogRepository, logger *zap.Logger) *NutritionService {
	return &NutritionService{repo: repo, logger: logger}
}

// CreateLog records one food entry for a day.
func (s *NutritionService) CreateLog(ctx context.Context, identityID int64, req *nutrition.CreateLogRequest) (*nutrition.Log, error) {
	day, err := parseDay(req.ConsumedOn)
	if err != nil {
		return nil, err
	}

	log := &nutrition.Log{
		IdentityID: identityID,
		FoodName:   req.FoodName,
		Calories:   req.Calories,
		Tags:       req.Tags,
		ConsumedOn: day,
	}
	if err := s.repo.CreateLog(ctx, log); err != nil {
		return nil, fmt.Errorf("failed to create nutrition log: %w", err)
	}
	return log, nil
}

// ListLogs returns the entries for a day.
func (s *NutritionService) ListLogs(ctx context.Context, identityID int64, date string) ([]*nutrition.Log, error) {
	day, err := parseDay(date)
	if err != nil {
		return nil, err
	}
	return s.repo.ListLogsByDate(ctx, identityID, day)
}

// DailySummary computes the integrated overview for a day. The exact sum is
// what downstream clients reconcile against; the display value is rounded
// half away from zero, matching the overview card.
func (s *NutritionService) DailySummary(ctx context.Context, identityID int64, date string) (*nutrition.DailySummary, error) {
	day, err := parseDay(date)
	if err != nil {
		return nil, err
	}

	total, count, err := s.repo.SumCaloriesByDate(ctx, identityID, day)
	if err != nil {
		return nil, fmt.Errorf("failed to compute daily summary: %w", err)
	}

	return &nutrition.DailySummary{
		Date:            day.Format("2006-01-02"),
		TotalCalories:   total,
		DisplayCalories: int(math.Round(total)),
		Entries:         count,
	}, nil
}

// DeleteLog removes an entry owned by the identity.
func (s *NutritionService) DeleteLog(ctx context.Context, identityID, id int64) error {
	return s.repo.DeleteLog(ctx, identityID, id)
}

func parseDay(date string) (time.Time, error) {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return time.Time{}, xerrors.ErrInvalidInput
	}
	return day, nil
}
