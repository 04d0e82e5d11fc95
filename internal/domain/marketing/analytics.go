package marketing

import (
	"github.com/shopspring/decimal"
)

// Analytics holds the derived performance figures of a campaign.
// Rates are percentages rounded to 2 places; a zero denominator yields 0.
type Analytics struct {
	SentCount         int
	OpenCount         int
	ClickCount        int
	ConversionCount   int
	ConversionValue   decimal.Decimal
	OpenRate          decimal.Decimal
	ClickRate         decimal.Decimal
	ConversionRate    decimal.Decimal
	ClickToOpenRate   decimal.Decimal
	CostPerConversion decimal.Decimal
	ROI               decimal.Decimal
	BudgetUtilisation decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// ComputeAnalytics derives rates from the campaign counters
func ComputeAnalytics(c *Campaign) Analytics {
	sent := decimal.NewFromInt(int64(c.SentCount))
	opens := decimal.NewFromInt(int64(c.OpenCount))
	clicks := decimal.NewFromInt(int64(c.ClickCount))
	conversions := decimal.NewFromInt(int64(c.ConversionCount))

	return Analytics{
		SentCount:         c.SentCount,
		OpenCount:         c.OpenCount,
		ClickCount:        c.ClickCount,
		ConversionCount:   c.ConversionCount,
		ConversionValue:   c.ConversionValue,
		OpenRate:          percent(opens, sent),
		ClickRate:         percent(clicks, sent),
		ConversionRate:    percent(conversions, sent),
		ClickToOpenRate:   percent(clicks, opens),
		CostPerConversion: ratio(c.ActualCost, conversions),
		ROI:               percent(c.ConversionValue.Sub(c.ActualCost), c.ActualCost),
		BudgetUtilisation: percent(c.ActualCost, c.Budget),
	}
}

func percent(num, den decimal.Decimal) decimal.Decimal {
	if den.IsZero() {
		return decimal.Zero
	}
	return num.Mul(hundred).Div(den).Round(2)
}

func ratio(num, den decimal.Decimal) decimal.Decimal {
	if den.IsZero() {
		return decimal.Zero
	}
	return num.Div(den).Round(2)
}
