// Package notify builds outbound notification payloads: WhatsApp deep
// links and pt-BR formatted message bodies.
package notify

import (
	"fmt"
	"net/url"
	"strings"
)

// countryCode is prepended to national numbers that lack one.
const countryCode = "55"

// onlyDigits strips everything but 0-9.
func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// WhatsAppLink returns a wa.me deep link with the message prefilled.
// Returns empty when the phone has no digits.
func WhatsAppLink(phone, message string) string {
	digits := onlyDigits(phone)
	if digits == "" {
		return ""
	}
	if len(digits) <= 11 {
		digits = countryCode + digits
	}
	link := "https://wa.me/" + digits
	if message != "" {
		link += "?text=" + url.QueryEscape(message)
	}
	return link
}

// QuotationInvite is the message sent alongside a supplier response link.
func QuotationInvite(supplierName, quotationNumber, responseURL string) string {
	return fmt.Sprintf(
		"Olá %s! A Tramatex convida você a responder a cotação %s. Acesse: %s",
		supplierName, quotationNumber, responseURL)
}
