package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"tontinehub/internal/pkg/metrics"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
)

// NotificationService delivers messages through a webhook (push gateway or
// LINE-Notify style relay). Disabled when no token is configured, so local
// runs just log.
type NotificationService struct {
	webhookURL string
	token      string
	enabled    bool
	client     *http.Client
}

// NewNotificationService creates a notification service from environment
func NewNotificationService() *NotificationService {
	token := os.Getenv("NOTIFY_TOKEN")
	url := os.Getenv("NOTIFY_WEBHOOK_URL")
	return &NotificationService{
		webhookURL: url,
		token:      token,
		enabled:    token != "" && url != "",
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// IsEnabled checks if notification delivery is enabled
func (s *NotificationService) IsEnabled() bool {
	return s.enabled
}

// Notify sends one message to one member. Implements Notifier.
func (s *NotificationService) Notify(userID uint, kind string, payload map[string]interface{}) error {
	if !s.enabled {
		return nil
	}

	body, err := json.Marshal(map[string]interface{}{
		"trace_id": uuid.NewString(),
		"user_id":  userID,
		"kind":     kind,
		"payload":  payload,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// ============================================================
// Async dispatcher — fire-and-forget around a Notifier
// ============================================================

// AsyncDispatcher wraps a Notifier so draw code never blocks on delivery.
// Failures are logged and counted, never escalated to the caller.
type AsyncDispatcher struct {
	notifier Notifier
	metrics  *metrics.DrawMetrics
}

// NewAsyncDispatcher creates a dispatcher; metrics may be nil
func NewAsyncDispatcher(notifier Notifier, m *metrics.DrawMetrics) *AsyncDispatcher {
	return &AsyncDispatcher{notifier: notifier, metrics: m}
}

// Dispatch sends one message in the background
func (d *AsyncDispatcher) Dispatch(userID uint, kind string, payload map[string]interface{}) {
	go func() {
		if err := d.notifier.Notify(userID, kind, payload); err != nil {
			d.metrics.IncNotifyFailures()
			log.Printf("⚠️ Notification %s to user %d failed: %v", kind, userID, err)
		}
	}()
}

// DispatchAll fans one message out to many members and logs the aggregate
// failure, if any
func (d *AsyncDispatcher) DispatchAll(userIDs []uint, kind string, payload map[string]interface{}) {
	go func() {
		var errs *multierror.Error
		for _, userID := range userIDs {
			if err := d.notifier.Notify(userID, kind, payload); err != nil {
				d.metrics.IncNotifyFailures()
				errs = multierror.Append(errs, fmt.Errorf("user %d: %w", userID, err))
			}
		}
		if err := errs.ErrorOrNil(); err != nil {
			log.Printf("⚠️ Notification %s partially failed: %v", kind, err)
		}
	}()
}
