package notify

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/tramatex-erp/tramatex-erp/internal/orders"
)

func TestWhatsAppLinkNormalizesNumber(t *testing.T) {
	link := WhatsAppLink("(11) 98888-7777", "Olá!")
	require.Equal(t, "https://wa.me/5511988887777?text=Ol%C3%A1%21", link)
}

func TestWhatsAppLinkKeepsExistingCountryCode(t *testing.T) {
	link := WhatsAppLink("+55 11 98888-7777", "")
	require.Equal(t, "https://wa.me/5511988887777", link)
}

func TestWhatsAppLinkEmptyPhone(t *testing.T) {
	require.Empty(t, WhatsAppLink("sem telefone", "oi"))
}

func TestOrderEventMessageApprovedCarriesTotal(t *testing.T) {
	order := orders.Order{Number: "B2B-2026-0007", Total: decimal.RequireFromString("1260.00")}
	msg := OrderEventMessage(order, orders.EventApproved)
	require.Contains(t, msg, "B2B-2026-0007")
	require.Contains(t, msg, "R$")
}

func TestOrderEventMessageShippedIncludesTracking(t *testing.T) {
	order := orders.Order{Number: "B2B-2026-0008", TrackingCode: "BR123", Carrier: "Correios"}
	msg := OrderEventMessage(order, orders.EventShipped)
	require.Contains(t, msg, "BR123")
	require.Contains(t, msg, "Correios")
}
