package quotation

import (
	"sort"

	"github.com/shopspring/decimal"
)

// SupplierSummary is the comparison row shown on the approval screen.
type SupplierSummary struct {
	SupplierID         int64            `json:"fornecedor_id"`
	AnsweredItems      int              `json:"itens_respondidos"`
	Total              decimal.Decimal  `json:"total"`
	Coverage           decimal.Decimal  `json:"cobertura"`
	AverageLeadTime    decimal.Decimal  `json:"prazo_medio_dias"`
	HistoricalVariance *decimal.Decimal `json:"variacao_historica,omitempty"`
}

// Total sums unit price × requested quantity over the supplier's answered
// items. Items without an answer contribute nothing.
func Total(items []Item, responses []Response) decimal.Decimal {
	qtyByItem := make(map[int64]decimal.Decimal, len(items))
	for _, it := range items {
		qtyByItem[it.ID] = it.Quantity
	}
	total := decimal.Zero
	for _, resp := range responses {
		qty, ok := qtyByItem[resp.ItemID]
		if !ok {
			continue
		}
		total = total.Add(resp.UnitPrice.Mul(qty))
	}
	return total
}

// Coverage is answered items over total items, in [0, 1]. Zero items
// yields zero coverage.
func Coverage(totalItems, answeredItems int) decimal.Decimal {
	if totalItems <= 0 || answeredItems <= 0 {
		return decimal.Zero
	}
	if answeredItems > totalItems {
		answeredItems = totalItems
	}
	return decimal.NewFromInt(int64(answeredItems)).DivRound(decimal.NewFromInt(int64(totalItems)), 4)
}

// AverageLeadTime is the mean of the supplier's quoted lead times in days.
// No responses yields zero, not an error.
func AverageLeadTime(responses []Response) decimal.Decimal {
	if len(responses) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, resp := range responses {
		sum = sum.Add(decimal.NewFromInt(int64(resp.LeadTimeDays)))
	}
	return sum.DivRound(decimal.NewFromInt(int64(len(responses))), 2)
}

// HistoricalVariance is the mean percentage deviation of quoted prices
// against the last paid price, over the responses that carry history:
// mean((price − hist) / hist × 100). Returns nil when no response has a
// usable historical price, so "no data" never renders as 0% variance.
func HistoricalVariance(responses []Response) *decimal.Decimal {
	sum := decimal.Zero
	n := 0
	hundred := decimal.NewFromInt(100)
	for _, resp := range responses {
		if resp.HistoricalPrice == nil || resp.HistoricalPrice.IsZero() {
			continue
		}
		deviation := resp.UnitPrice.Sub(*resp.HistoricalPrice).
			DivRound(*resp.HistoricalPrice, 6).
			Mul(hundred)
		sum = sum.Add(deviation)
		n++
	}
	if n == 0 {
		return nil
	}
	mean := sum.DivRound(decimal.NewFromInt(int64(n)), 2)
	return &mean
}

// Summarize builds one SupplierSummary per responding supplier.
func Summarize(items []Item, responses []Response) []SupplierSummary {
	bySupplier := make(map[int64][]Response)
	for _, resp := range responses {
		bySupplier[resp.SupplierID] = append(bySupplier[resp.SupplierID], resp)
	}
	summaries := make([]SupplierSummary, 0, len(bySupplier))
	for supplierID, supplierResponses := range bySupplier {
		summaries = append(summaries, SupplierSummary{
			SupplierID:         supplierID,
			AnsweredItems:      len(supplierResponses),
			Total:              Total(items, supplierResponses),
			Coverage:           Coverage(len(items), len(supplierResponses)),
			AverageLeadTime:    AverageLeadTime(supplierResponses),
			HistoricalVariance: HistoricalVariance(supplierResponses),
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].SupplierID < summaries[j].SupplierID
	})
	return summaries
}

// BestPriceSupplier returns the supplier with the lowest total among those
// that answered at least one item. Ties break deterministically to the
// smallest supplier ID. Returns nil when nobody answered.
func BestPriceSupplier(summaries []SupplierSummary) *int64 {
	var best *SupplierSummary
	for i := range summaries {
		s := &summaries[i]
		if s.AnsweredItems == 0 {
			continue
		}
		switch {
		case best == nil:
			best = s
		case s.Total.LessThan(best.Total):
			best = s
		case s.Total.Equal(best.Total) && s.SupplierID < best.SupplierID:
			best = s
		}
	}
	if best == nil {
		return nil
	}
	id := best.SupplierID
	return &id
}
