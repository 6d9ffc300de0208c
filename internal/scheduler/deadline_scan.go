package scheduler

import (
	"context"
	"time"

	triprepo "tripdesk_backend/internal/trips/repository"
	"tripdesk_backend/platform/config"
	"tripdesk_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultScanInterval = time.Hour

// DeadlineScanner periodically looks for trips with a deposit or final
// payment coming due inside the reminder window and enqueues one deadline
// task per hit. Rescans are harmless because the resulting notifications
// deduplicate on the event key.
type DeadlineScanner struct {
	client   *Client
	repo     *triprepo.Repository
	log      *logger.Logger
	interval time.Duration
	leadDays int
}

func NewDeadlineScanner(cfg config.ReminderConfig, client *Client, pool *pgxpool.Pool, log *logger.Logger) *DeadlineScanner {
	interval := cfg.GetDeadlineScanInterval()
	if interval <= 0 {
		interval = defaultScanInterval
	}

	leadDays := cfg.GetPaymentReminderLeadDays()
	if leadDays < 1 {
		leadDays = 7
	}

	return &DeadlineScanner{
		client:   client,
		repo:     triprepo.New(pool),
		log:      log,
		interval: interval,
		leadDays: leadDays,
	}
}

func (s *DeadlineScanner) Run(ctx context.Context) {
	if s == nil || s.client == nil || s.repo == nil {
		return
	}

	s.scan(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scan(ctx)
		}
	}
}

func (s *DeadlineScanner) scan(ctx context.Context) {
	cutoff := time.Now().AddDate(0, 0, s.leadDays)

	deadlines, err := s.repo.ListUpcomingDeadlines(ctx, cutoff)
	if err != nil {
		s.log.Warn("deadline scan failed", "error", err)
		return
	}

	for _, d := range deadlines {
		err := s.client.EnqueuePaymentDeadline(ctx, PaymentDeadlinePayload{
			TripID:         d.TripID.String(),
			AgencyID:       d.AgencyID.String(),
			AssignedUserID: d.AssignedUserID.String(),
			TripName:       d.TripName,
			DeadlineType:   d.DeadlineType,
			DueDate:        d.DueDate.Format("2006-01-02"),
		})
		if err != nil {
			s.log.Warn("deadline enqueue failed", "tripId", d.TripID, "error", err)
		}
	}

	if len(deadlines) > 0 {
		s.log.Info("deadline scan enqueued reminders", "count", len(deadlines))
	}
}
