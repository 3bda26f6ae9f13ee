package report

import (
	"fmt"
	"io"
	"math"

	sdkmath "cosmossdk.io/math"
	"github.com/olekukonko/tablewriter"

	"github.com/elys-network/treasury-sim/internal/types"
)

// WriteMonthlyTable renders one row per simulated month.
func WriteMonthlyTable(w io.Writer, snapshots []types.MonthSnapshot) error {
	table := tablewriter.NewWriter(w)
	table.Header("Month", "Price", "Pool Token", "Pool Numeraire", "Depth $", "Exp IRR", "Redeemed", "Bond Supply", "TVL", "Revenue", "Skipped")

	for _, s := range snapshots {
		depth := s.DeepPoolDepth.Add(s.PositionDepth).Value(s.Price)
		if err := table.Append(
			fmt.Sprintf("%d", s.Month),
			fmt.Sprintf("%.4f", s.Price),
			fmt.Sprintf("%.0f", s.DeepPool.Token),
			fmt.Sprintf("%.0f", s.DeepPool.Numeraire),
			fmt.Sprintf("%.0f", depth),
			irrLabel(s.ExpectedIRR, s.RedeemNow),
			decLabel(s.RedeemedTotal),
			decLabel(s.RemainingSupply),
			fmt.Sprintf("%.1fM", s.TotalTVL/1e6),
			fmt.Sprintf("%.0f", s.MonthlyRevenue),
			fmt.Sprintf("%d", s.SkippedTrades),
		); err != nil {
			return fmt.Errorf("appending month %d: %w", s.Month, err)
		}
	}
	return table.Render()
}

// WriteSummary renders the run summary as a two-column table.
func WriteSummary(w io.Writer, summary types.RunSummary) error {
	table := tablewriter.NewWriter(w)
	table.Header("Metric", "Value")

	rows := [][]string{
		{"Run", summary.RunID},
		{"Months", fmt.Sprintf("%d", summary.Months)},
		{"Final price", fmt.Sprintf("%.4f", summary.FinalPrice)},
		{"Price range", fmt.Sprintf("%.4f - %.4f", summary.MinPrice, summary.MaxPrice)},
		{"Annualized volatility", fmt.Sprintf("%.2f%%", summary.PriceVolatility*100)},
		{"Bonds redeemed", decLabel(summary.TotalRedeemed)},
		{"Bond supply remaining", decLabel(summary.RemainingSupply)},
		{"Deep pool token", fmt.Sprintf("%.0f", summary.FinalDeepPool.Token)},
		{"Deep pool numeraire", fmt.Sprintf("%.0f", summary.FinalDeepPool.Numeraire)},
		{"Cumulative revenue", fmt.Sprintf("%.0f", summary.CumulativeRevenue)},
		{"Skipped trades", fmt.Sprintf("%d", summary.SkippedTrades)},
	}
	for _, row := range rows {
		if err := table.Append(row[0], row[1]); err != nil {
			return err
		}
	}
	return table.Render()
}

func irrLabel(irr float64, redeemNow bool) string {
	switch {
	case redeemNow || math.IsInf(irr, -1):
		return "redeem"
	case irr == 0:
		return "-"
	default:
		return fmt.Sprintf("%.1f%%", irr)
	}
}

func decLabel(d sdkmath.LegacyDec) string {
	if d.IsNil() {
		return "0"
	}
	return d.TruncateInt().String()
}
