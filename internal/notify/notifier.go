package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tramatex-erp/tramatex-erp/internal/clients"
	"github.com/tramatex-erp/tramatex-erp/internal/orders"
	"github.com/tramatex-erp/tramatex-erp/jobs"
)

// ClientDirectory resolves the client's contact data.
type ClientDirectory interface {
	Get(ctx context.Context, id int64) (clients.Client, error)
}

// OrderNotifier translates order events into queued client messages.
type OrderNotifier struct {
	logger  *slog.Logger
	queue   *jobs.Client
	clients ClientDirectory
}

// NewOrderNotifier wires an OrderNotifier. A nil queue disables delivery
// (test mode), leaving only the log line.
func NewOrderNotifier(logger *slog.Logger, queue *jobs.Client, clientDir ClientDirectory) *OrderNotifier {
	return &OrderNotifier{logger: logger, queue: queue, clients: clientDir}
}

// NotifyClient enqueues the message for the order's client.
func (n *OrderNotifier) NotifyClient(ctx context.Context, order orders.Order, event string) error {
	client, err := n.clients.Get(ctx, order.ClientID)
	if err != nil {
		return err
	}
	body := OrderEventMessage(order, event)
	payload := jobs.ClientNotificationPayload{
		OrderID:     order.ID,
		OrderNumber: order.Number,
		ClientID:    order.ClientID,
		Event:       event,
		Message:     body,
		WhatsAppURL: WhatsAppLink(client.WhatsApp, body),
	}
	n.logger.Info("order notification queued",
		slog.String("event", event),
		slog.String("order", order.Number))
	if n.queue == nil {
		return nil
	}
	_, err = n.queue.EnqueueClientNotification(ctx, payload)
	return err
}

// OrderEventMessage renders the pt-BR message body for an order event.
func OrderEventMessage(order orders.Order, event string) string {
	switch event {
	case orders.EventApproved:
		return fmt.Sprintf("Seu pedido %s foi aprovado! Valor: %s. Aguardamos o pagamento para iniciar a separação.",
			order.Number, FormatBRL(order.Total))
	case orders.EventRefused:
		return fmt.Sprintf("Seu pedido %s foi recusado. Motivo: %s", order.Number, order.Justification)
	case orders.EventPaymentConfirmed:
		msg := fmt.Sprintf("Pagamento do pedido %s confirmado!", order.Number)
		if order.EstimatedArrival != nil {
			msg += fmt.Sprintf(" Previsão de entrega: %s.", order.EstimatedArrival.Format("02/01/2006"))
		}
		return msg
	case orders.EventShipped:
		msg := fmt.Sprintf("Seu pedido %s foi enviado!", order.Number)
		if order.TrackingCode != "" {
			msg += fmt.Sprintf(" Rastreio: %s (%s).", order.TrackingCode, order.Carrier)
		}
		return msg
	case orders.EventDelivered:
		return fmt.Sprintf("Pedido %s entregue. Obrigado pela preferência!", order.Number)
	case orders.EventCancelled:
		return fmt.Sprintf("Seu pedido %s foi cancelado. Motivo: %s", order.Number, order.Justification)
	default:
		return fmt.Sprintf("Atualização do pedido %s.", order.Number)
	}
}
