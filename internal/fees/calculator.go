// Package fees computes transfer fees. The calculator is pure: the write path
// and the audit reporting read path both call it and must agree on every
// historical amount.
package fees

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/finbase-io/wallet-engine/pkg/config"
	"github.com/finbase-io/wallet-engine/pkg/money"
)

// Defaults mirroring the production fee schedule.
var (
	defaultThreshold  = decimal.RequireFromString("25.00")
	defaultBaseFee    = decimal.RequireFromString("2.50")
	defaultPercentage = decimal.RequireFromString("0.10")
)

// Calculator derives transfer fees from a threshold/base/percentage policy.
// Amounts at or below the threshold carry no fee.
type Calculator struct {
	threshold  decimal.Decimal
	baseFee    decimal.Decimal
	percentage decimal.Decimal
}

// Breakdown itemizes how a fee was derived. Rate is expressed as a percentage
// of the transferred amount.
type Breakdown struct {
	BaseFee       decimal.Decimal `json:"base_fee"`
	PercentageFee decimal.Decimal `json:"percentage_fee"`
	TotalFee      decimal.Decimal `json:"total_fee"`
	Rate          decimal.Decimal `json:"fee_rate"`
}

// NewCalculator returns a calculator with the default fee schedule.
func NewCalculator() *Calculator {
	return &Calculator{
		threshold:  defaultThreshold,
		baseFee:    defaultBaseFee,
		percentage: defaultPercentage,
	}
}

// NewCalculatorFromConfig parses the configured fee schedule.
func NewCalculatorFromConfig(cfg config.FeeConfig) (*Calculator, error) {
	threshold, err := decimal.NewFromString(cfg.TransferThreshold)
	if err != nil {
		return nil, fmt.Errorf("parsing fee threshold: %w", err)
	}
	baseFee, err := decimal.NewFromString(cfg.TransferBaseFee)
	if err != nil {
		return nil, fmt.Errorf("parsing base fee: %w", err)
	}
	percentage, err := decimal.NewFromString(cfg.TransferPercentage)
	if err != nil {
		return nil, fmt.Errorf("parsing fee percentage: %w", err)
	}
	return &Calculator{threshold: threshold, baseFee: baseFee, percentage: percentage}, nil
}

// Fee returns the transfer fee for amount, rounded to two decimals half up.
func (c *Calculator) Fee(amount decimal.Decimal) decimal.Decimal {
	if amount.LessThanOrEqual(c.threshold) {
		return decimal.Zero
	}
	percentageFee := money.Round2(amount.Mul(c.percentage))
	return money.Round2(c.baseFee.Add(percentageFee))
}

// Breakdown itemizes the fee for amount. The rate is zero for a zero amount;
// callers never divide by zero here.
func (c *Calculator) Breakdown(amount decimal.Decimal) Breakdown {
	if amount.LessThanOrEqual(c.threshold) {
		return Breakdown{
			BaseFee:       decimal.Zero,
			PercentageFee: decimal.Zero,
			TotalFee:      decimal.Zero,
			Rate:          decimal.Zero,
		}
	}

	percentageFee := money.Round2(amount.Mul(c.percentage))
	totalFee := money.Round2(c.baseFee.Add(percentageFee))

	rate := decimal.Zero
	if !amount.IsZero() {
		rate = money.Round2(totalFee.Div(amount).Mul(decimal.NewFromInt(100)))
	}

	return Breakdown{
		BaseFee:       c.baseFee,
		PercentageFee: percentageFee,
		TotalFee:      totalFee,
		Rate:          rate,
	}
}
