// Package ocr calls the external label text-extraction service used to
// seed inventory counts from fabric roll label photos.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tramatex-erp/tramatex-erp/internal/shared"
)

// Client is a thin HTTP client for the OCR service. The service is an
// opaque collaborator: failures surface as external errors, never retried
// here.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient constructs a Client. An empty baseURL disables OCR.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Enabled reports whether an OCR endpoint is configured.
func (c *Client) Enabled() bool {
	return c.baseURL != ""
}

// Extraction is the parsed label content.
type Extraction struct {
	RawText   string           `json:"texto"`
	Reference string           `json:"referencia,omitempty"`
	Batch     string           `json:"lote,omitempty"`
	Quantity  *decimal.Decimal `json:"quantidade,omitempty"`
}

type extractRequest struct {
	ImageBase64 string `json:"imagem_base64"`
}

type extractResponse struct {
	Text string `json:"text"`
}

// Extract submits a base64 label photo and parses the returned text.
func (c *Client) Extract(ctx context.Context, imageBase64 string) (Extraction, error) {
	if !c.Enabled() {
		return Extraction{}, shared.Externalf("serviço de OCR não configurado")
	}
	if imageBase64 == "" {
		return Extraction{}, shared.Validationf("imagem da etiqueta é obrigatória")
	}

	body, err := json.Marshal(extractRequest{ImageBase64: imageBase64})
	if err != nil {
		return Extraction{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/extract", bytes.NewReader(body))
	if err != nil {
		return Extraction{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Extraction{}, shared.Externalf("falha ao contatar serviço de OCR: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Extraction{}, shared.Externalf("serviço de OCR respondeu status %d", resp.StatusCode)
	}

	var out extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Extraction{}, shared.Externalf("resposta inválida do serviço de OCR: %v", err)
	}
	return ParseLabel(out.Text), nil
}

var (
	referencePattern = regexp.MustCompile(`(?i)\bREF[.:\s]*([A-Z0-9-]+)`)
	batchPattern     = regexp.MustCompile(`(?i)\bLOTE[.:\s]*([A-Z0-9-]+)`)
	quantityPattern  = regexp.MustCompile(`(?i)\b(\d+(?:[.,]\d+)?)\s*(?:M|MT|MTS|METROS)\b`)
)

// ParseLabel pulls the reference, batch and metre quantity out of raw
// label text. Labels vary between suppliers, so every field is optional.
func ParseLabel(text string) Extraction {
	ex := Extraction{RawText: text}
	if m := referencePattern.FindStringSubmatch(text); m != nil {
		ex.Reference = strings.ToUpper(m[1])
	}
	if m := batchPattern.FindStringSubmatch(text); m != nil {
		ex.Batch = strings.ToUpper(m[1])
	}
	if m := quantityPattern.FindStringSubmatch(text); m != nil {
		raw := strings.ReplaceAll(m[1], ",", ".")
		if qty, err := decimal.NewFromString(raw); err == nil {
			ex.Quantity = &qty
		}
	}
	return ex
}
