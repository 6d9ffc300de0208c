package scheduler

import (
	"context"
	"fmt"

	"tripdesk_backend/internal/email"
	"tripdesk_backend/internal/email/queue"
	"tripdesk_backend/internal/notification/inapp"
	"tripdesk_backend/platform/config"
	"tripdesk_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Worker struct {
	server        *asynq.Server
	mux           *asynq.ServeMux
	notifications *inapp.Service
	emailQueue    *queue.Repository
	sender        email.Sender
	log           *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, pool *pgxpool.Pool, sender email.Sender, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queueName := cfg.GetAsynqQueueName()
	if queueName == "" {
		queueName = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:        server,
		mux:           mux,
		notifications: inapp.NewService(inapp.New(pool), log),
		emailQueue:    queue.New(pool),
		sender:        sender,
		log:           log,
	}

	mux.HandleFunc(TaskPaymentDeadline, w.handlePaymentDeadline)
	mux.HandleFunc(TaskEmailSend, w.handleEmailSend)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

// handlePaymentDeadline raises an urgent notification for the agent assigned
// to the trip. The notification store deduplicates on the event key, so a
// rescan of the same deadline is a no-op.
func (w *Worker) handlePaymentDeadline(ctx context.Context, task *asynq.Task) error {
	payload, err := ParsePaymentDeadlinePayload(task)
	if err != nil {
		return err
	}

	tripID, err := uuid.Parse(payload.TripID)
	if err != nil {
		return err
	}

	agencyID, err := uuid.Parse(payload.AgencyID)
	if err != nil {
		return err
	}

	userID, err := uuid.Parse(payload.AssignedUserID)
	if err != nil {
		return err
	}

	title := "Deposit due soon"
	if payload.DeadlineType == "final_payment" {
		title = "Final payment due soon"
	}

	_, err = w.notifications.CreateForUsers(ctx, inapp.CreateForUsersParams{
		AgencyID:   agencyID,
		UserIDs:    []uuid.UUID{userID},
		Type:       inapp.TypeUrgent,
		Title:      title,
		Message:    fmt.Sprintf("%s: %s deadline on %s", payload.TripName, payload.DeadlineType, payload.DueDate),
		EntityType: "trip",
		EntityID:   tripID,
		EventType:  "payment_deadline:" + payload.DeadlineType + ":" + payload.DueDate,
	})
	return err
}

// handleEmailSend delivers one claimed queue item. Delivery failures are
// recorded on the item rather than retried through asynq, so a broken
// address cannot wedge the queue.
func (w *Worker) handleEmailSend(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseEmailSendPayload(task)
	if err != nil {
		return err
	}

	itemID, err := uuid.Parse(payload.ItemID)
	if err != nil {
		return err
	}

	if err := w.sender.Send(ctx, payload.ToEmail, payload.Subject, payload.Body); err != nil {
		w.log.SideEffectError("email", "send", err)
		return w.emailQueue.MarkFailed(ctx, itemID, err.Error())
	}

	return w.emailQueue.MarkSent(ctx, itemID)
}
