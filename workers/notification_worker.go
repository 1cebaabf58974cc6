package workers

import (
	"context"
	"log"
	"time"

	"github.com/iste-sc/portal/db"
	"github.com/iste-sc/portal/services"
)

// NotificationWorker drains the redis delivery queue and pushes each
// notification to its audience's devices through FCM. A periodic sweep
// re-enqueues rows stuck in queued state, which covers redis outages and
// pushes lost between insert and LPUSH.
type NotificationWorker struct {
	Notifications *services.NotificationService
	FCM           *services.FCMService
}

func NewNotificationWorker(notifications *services.NotificationService, fcm *services.FCMService) *NotificationWorker {
	return &NotificationWorker{Notifications: notifications, FCM: fcm}
}

// Start blocks until ctx is cancelled.
func (w *NotificationWorker) Start(ctx context.Context) {
	log.Println("Notification worker started, draining delivery queue...")

	sweep := time.NewTicker(1 * time.Minute)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Notification worker stopping")
			return
		case <-sweep.C:
			w.sweepStale(ctx)
		default:
		}

		id, err := w.Notifications.NextQueued(ctx, 5*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("Worker: queue read failed: %v", err)
			time.Sleep(5 * time.Second)
			continue
		}
		if id == "" {
			continue
		}
		w.deliver(ctx, id)
	}
}

func (w *NotificationWorker) deliver(ctx context.Context, id string) {
	n, err := w.Notifications.Get(id)
	if err != nil {
		log.Printf("Worker: notification %s not loadable: %v", id, err)
		return
	}
	if n.Status != db.NotificationQueued {
		log.Printf("Worker: notification %s already %s, skipping", id, n.Status)
		return
	}

	tokens, err := w.Notifications.TokensForAudience(n.Audience)
	if err != nil {
		log.Printf("Worker: failed to collect tokens for %s: %v", id, err)
		if markErr := w.Notifications.MarkFailed(id); markErr != nil {
			log.Printf("Worker: %v", markErr)
		}
		return
	}

	if !w.FCM.Enabled() || len(tokens) == 0 {
		// Nothing to push to; the notice still shows on dashboards.
		if err := w.Notifications.MarkSent(id); err != nil {
			log.Printf("Worker: %v", err)
		}
		return
	}

	sent, failed, err := w.FCM.Send(ctx, n, tokens)
	if err != nil {
		log.Printf("Worker: delivery of %s failed: %v", id, err)
		if markErr := w.Notifications.MarkFailed(id); markErr != nil {
			log.Printf("Worker: %v", markErr)
		}
		return
	}

	if sent == 0 && failed > 0 {
		if err := w.Notifications.MarkFailed(id); err != nil {
			log.Printf("Worker: %v", err)
		}
		return
	}
	if err := w.Notifications.MarkSent(id); err != nil {
		log.Printf("Worker: %v", err)
	}
}

// sweepStale re-delivers notifications that never left queued state.
func (w *NotificationWorker) sweepStale(ctx context.Context) {
	ids, err := w.Notifications.StaleQueuedIDs(2*time.Minute, 20)
	if err != nil {
		log.Printf("Worker: stale sweep failed: %v", err)
		return
	}
	if len(ids) == 0 {
		return
	}

	log.Printf("Worker: sweeping %d stale queued notifications", len(ids))
	for _, id := range ids {
		w.deliver(ctx, id)
	}
}
