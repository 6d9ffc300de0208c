package scheduler

import (
	"context"
	"time"

	"tripdesk_backend/internal/email/queue"
	"tripdesk_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

const emailDispatchInterval = 15 * time.Second

// EmailDispatcher periodically claims due email queue rows and hands each one
// to the worker as a send task.
type EmailDispatcher struct {
	client *Client
	repo   *queue.Repository
	log    *logger.Logger
}

func NewEmailDispatcher(client *Client, pool *pgxpool.Pool, log *logger.Logger) *EmailDispatcher {
	return &EmailDispatcher{
		client: client,
		repo:   queue.New(pool),
		log:    log,
	}
}

func (d *EmailDispatcher) Run(ctx context.Context) {
	if d == nil || d.client == nil || d.repo == nil {
		return
	}

	ticker := time.NewTicker(emailDispatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		items, err := d.repo.ClaimDue(ctx, 50)
		if err != nil {
			d.log.Warn("email queue claim failed", "error", err)
			continue
		}

		for _, item := range items {
			err := d.client.EnqueueEmailSend(ctx, EmailSendPayload{
				ItemID:  item.ID.String(),
				ToEmail: item.ToEmail,
				Subject: item.Subject,
				Body:    item.Body,
			})
			if err != nil {
				d.log.Warn("email dispatch enqueue failed", "itemId", item.ID, "error", err)
				_ = d.repo.MarkFailed(ctx, item.ID, err.Error())
			}
		}
	}
}
