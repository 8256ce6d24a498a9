package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeClientNotification delivers order events to B2B clients.
	TaskTypeClientNotification = "pedidos:notificar"
)

// ClientNotificationPayload describes one client-facing order event.
type ClientNotificationPayload struct {
	OrderID     int64  `json:"order_id"`
	OrderNumber string `json:"order_number"`
	ClientID    int64  `json:"client_id"`
	Event       string `json:"event"`
	Message     string `json:"message"`
	WhatsAppURL string `json:"whatsapp_url,omitempty"`
}

// NewClientNotificationTask constructs an Asynq task.
func NewClientNotificationTask(payload ClientNotificationPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeClientNotification, data, asynq.Queue(QueueDefault)), nil
}

// HandleClientNotificationTask processes TaskTypeClientNotification tasks.
func HandleClientNotificationTask(ctx context.Context, t *asynq.Task) error {
	var payload ClientNotificationPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	// Placeholder: integrate with the WhatsApp Business API. The wa.me
	// link is already rendered for manual dispatch.
	fmt.Printf("[jobs] notify client=%d order=%s event=%s\n", payload.ClientID, payload.OrderNumber, payload.Event)
	return nil
}
