package service

import (
	"context"
	"fmt"

	"github.com/stemsi/tolcsim-backend/internal/model"
)

// StatsService serves the per-user analytics aggregated by the stats worker.
type StatsService struct {
	stats    StatsStore
	retryMax int
}

// NewStatsService creates a new StatsService.
func NewStatsService(stats StatsStore, retryMax int) *StatsService {
	return &StatsService{stats: stats, retryMax: retryMax}
}

// UserStatsView is one exam type line in the user's dashboard.
type UserStatsView struct {
	model.UserExamStats
	AveragePercentage int `json:"average_percentage"`
}

// ListForUser returns the caller's stats, one entry per exam type attempted.
func (s *StatsService) ListForUser(ctx context.Context, userID string) ([]UserStatsView, error) {
	var rows []model.UserExamStats
	err := retryStorage(ctx, s.retryMax, func() error {
		var err error
		rows, err = s.stats.ListByUser(ctx, userID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list stats: %w", err)
	}

	out := make([]UserStatsView, len(rows))
	for i, r := range rows {
		out[i] = UserStatsView{UserExamStats: r, AveragePercentage: r.AveragePercentage()}
	}
	return out, nil
}
