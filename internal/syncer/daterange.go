package syncer

import (
	apperrors "github.com/jonesrussell/site-portfolio/infrastructure/errors"
	"github.com/jonesrussell/site-portfolio/internal/config"
	"github.com/jonesrussell/site-portfolio/internal/models"
)

// Safety lags: providers finalize a day's data with a delay, so the default
// window ends this many days before today.
const (
	AnalyticsLagDays     = 1
	SearchConsoleLagDays = 2
)

// RangeRequest selects the days to sync. StartDate and EndDate ("YYYY-MM-DD")
// override Days when both are set.
type RangeRequest struct {
	Days      int    `json:"days"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// ResolveRange turns req into an inclusive date range relative to today.
func ResolveRange(req RangeRequest, lagDays int, today models.Date) (models.DateRange, error) {
	if req.StartDate != "" || req.EndDate != "" {
		return explicitRange(req)
	}

	days := req.Days
	if days == 0 {
		days = config.DefaultSyncDays
	}
	if days < 1 || days > config.MaxSyncDays {
		return models.DateRange{}, apperrors.Validation("days must be between 1 and %d", config.MaxSyncDays)
	}

	end := today.AddDays(-lagDays)
	return models.DateRange{Start: end.AddDays(-(days - 1)), End: end}, nil
}

func explicitRange(req RangeRequest) (models.DateRange, error) {
	if req.StartDate == "" || req.EndDate == "" {
		return models.DateRange{}, apperrors.Validation("startDate and endDate must be given together")
	}
	start, err := models.ParseDate(req.StartDate)
	if err != nil {
		return models.DateRange{}, apperrors.Validation("startDate: %v", err)
	}
	end, err := models.ParseDate(req.EndDate)
	if err != nil {
		return models.DateRange{}, apperrors.Validation("endDate: %v", err)
	}
	if end.Before(start) {
		return models.DateRange{}, apperrors.Validation("startDate must not be after endDate")
	}

	rng := models.DateRange{Start: start, End: end}
	if rng.Days() > config.MaxSyncDays {
		return models.DateRange{}, apperrors.Validation("date range must not exceed %d days", config.MaxSyncDays)
	}
	return rng, nil
}
