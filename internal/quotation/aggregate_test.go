package quotation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func threeItems() []Item {
	return []Item{
		{ID: 1, ProductID: 10, ColorID: 100, Quantity: dec("120")},
		{ID: 2, ProductID: 11, ColorID: 101, Quantity: dec("60")},
		{ID: 3, ProductID: 12, ColorID: 102, Quantity: dec("180")},
	}
}

func TestSummarizeNoResponses(t *testing.T) {
	summaries := Summarize(threeItems(), nil)
	require.Empty(t, summaries)
	require.Nil(t, BestPriceSupplier(summaries))
}

func TestAverageLeadTimeWithoutResponsesIsZero(t *testing.T) {
	require.True(t, AverageLeadTime(nil).IsZero())
}

func TestCoverageStaysWithinUnitInterval(t *testing.T) {
	require.True(t, Coverage(3, 0).IsZero())
	require.True(t, Coverage(0, 5).IsZero())

	full := Coverage(3, 3)
	require.True(t, full.Equal(decimal.NewFromInt(1)))

	partial := Coverage(3, 2)
	require.True(t, partial.GreaterThan(decimal.Zero))
	require.True(t, partial.LessThan(decimal.NewFromInt(1)))
	require.True(t, partial.Equal(dec("0.6667")))

	// Defensive clamp: more answers than items never exceeds 1.
	require.True(t, Coverage(3, 5).Equal(decimal.NewFromInt(1)))
}

func TestTotalIgnoresUnansweredItems(t *testing.T) {
	items := threeItems()
	responses := []Response{
		{ItemID: 1, SupplierID: 7, UnitPrice: dec("12.50"), LeadTimeDays: 10},
		{ItemID: 3, SupplierID: 7, UnitPrice: dec("8.00"), LeadTimeDays: 20},
	}
	// 120×12.50 + 180×8.00 = 1500 + 1440
	require.True(t, Total(items, responses).Equal(dec("2940")))
}

func TestSummarizeComputesPerSupplierMetrics(t *testing.T) {
	items := threeItems()
	responses := []Response{
		{ItemID: 1, SupplierID: 7, UnitPrice: dec("12.50"), LeadTimeDays: 10, HistoricalPrice: decPtr("10.00")},
		{ItemID: 2, SupplierID: 7, UnitPrice: dec("20.00"), LeadTimeDays: 15},
		{ItemID: 1, SupplierID: 9, UnitPrice: dec("11.00"), LeadTimeDays: 30},
	}
	summaries := Summarize(items, responses)
	require.Len(t, summaries, 2)

	first := summaries[0]
	require.Equal(t, int64(7), first.SupplierID)
	require.Equal(t, 2, first.AnsweredItems)
	// 120×12.50 + 60×20.00
	require.True(t, first.Total.Equal(dec("2700")))
	require.True(t, first.Coverage.Equal(dec("0.6667")))
	require.True(t, first.AverageLeadTime.Equal(dec("12.5")))
	// Single historical point: (12.50−10)/10×100 = 25%
	require.NotNil(t, first.HistoricalVariance)
	require.True(t, first.HistoricalVariance.Equal(dec("25")))

	second := summaries[1]
	require.Equal(t, int64(9), second.SupplierID)
	require.True(t, second.Total.Equal(dec("1320")))
	require.Nil(t, second.HistoricalVariance, "no history must render as absent, not 0%%")
}

func TestBestPriceSupplierTieBreaksToSmallestID(t *testing.T) {
	summaries := []SupplierSummary{
		{SupplierID: 9, AnsweredItems: 2, Total: dec("1500.00")},
		{SupplierID: 4, AnsweredItems: 2, Total: dec("1500.00")},
		{SupplierID: 2, AnsweredItems: 0, Total: decimal.Zero},
	}
	best := BestPriceSupplier(Summarize(nil, nil))
	require.Nil(t, best)

	best = BestPriceSupplier(summaries)
	require.NotNil(t, best)
	require.Equal(t, int64(4), *best)
}

func TestHistoricalVarianceSkipsZeroHistory(t *testing.T) {
	responses := []Response{
		{ItemID: 1, UnitPrice: dec("10.00"), HistoricalPrice: decPtr("0")},
		{ItemID: 2, UnitPrice: dec("9.00"), HistoricalPrice: decPtr("10.00")},
	}
	v := HistoricalVariance(responses)
	require.NotNil(t, v)
	require.True(t, v.Equal(dec("-10")))
}
