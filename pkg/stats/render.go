package stats

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
)

// Lines renders the report as human-readable lines for the run log.
func (r Report) Lines() []string {
	t := r.Totals
	lines := []string{
		fmt.Sprintf("run: %s, sessions connected %d/%d", r.Duration.Round(time.Second), r.Connected, r.Attempted),
		fmt.Sprintf("orders: sent %d, succeeded %d, failed %d, inconclusive %d, filled %d (success %s, fill %s)",
			t.OrdersSent, t.OrdersSucceeded, t.OrdersFailed, t.OrdersInconclusive, t.OrdersFilled,
			t.OrderSuccessRate, t.FillRate),
		fmt.Sprintf("productions: sent %d, succeeded %d, failed %d, inconclusive %d (success %s)",
			t.ProductionsSent, t.ProductionsSucceeded, t.ProductionsFailed, t.ProductionsInconclusive,
			t.ProductionSuccessRate),
		fmt.Sprintf("messages: errors %d, unexpected %d, late %d, orphans %d, background %d, dropped %d, transport errors %d",
			t.ProtocolErrors, t.Unexpected, t.LateResponses, t.Orphans, t.Background, t.Dropped, t.TransportErrors),
		fmt.Sprintf("fills %d, profit %s", t.Fills, t.Profit.StringFixed(2)),
	}
	if t.Latency.Count > 0 {
		lines = append(lines, fmt.Sprintf("latency: n=%d min %s avg %s max %s",
			t.Latency.Count, t.Latency.Min.Round(time.Millisecond),
			t.Latency.Avg.Round(time.Millisecond), t.Latency.Max.Round(time.Millisecond)))
	}

	for _, s := range r.Sessions {
		line := fmt.Sprintf("  %s [%s]: orders %d/%d ok (%s), filled %d, failed %d, inconclusive %d, productions %d/%d ok, profit %s",
			s.Team, s.Strategy, s.OrdersSucceeded, s.OrdersSent, s.OrderSuccessRate, s.OrdersFilled,
			s.OrdersFailed, s.OrdersInconclusive, s.ProductionsSucceeded, s.ProductionsSent,
			s.Profit.StringFixed(2))
		if s.BalanceChange.Valid {
			line += ", balance " + s.BalanceChange.Decimal.StringFixed(2)
		}
		lines = append(lines, line)
	}

	lines = append(lines, rankLines("top by volume", r.TopByVolume, 0)...)
	lines = append(lines, rankLines("top by fills", r.TopByFills, 0)...)
	lines = append(lines, rankLines("top by profit", r.TopByProfit, 2)...)

	for _, g := range r.ByStrategy {
		lines = append(lines, fmt.Sprintf("strategy %s: teams %d, avg orders %.1f, avg fills %.1f, avg profit %s",
			g.Strategy, g.Teams, g.AvgOrders, g.AvgFills, g.AvgProfit.StringFixed(2)))
	}
	for _, f := range r.Failures {
		lines = append(lines, fmt.Sprintf("excluded %s: %s", f.Team, f.Error))
	}

	return lines
}

func rankLines(title string, rows []Rank, places int32) []string {
	if len(rows) == 0 {
		return nil
	}
	out := []string{title + ":"}
	for _, row := range rows {
		out = append(out, fmt.Sprintf("  %d. %s %s", row.Position, row.Team, row.Value.StringFixed(places)))
	}
	return out
}

func (r Report) WriteText(w io.Writer) error {
	for _, l := range r.Lines() {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return errors.Wrap(err, "write report")
		}
	}
	return nil
}

// WriteJSON stores the structured report at path.
func (r Report) WriteJSON(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal report")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "write report %q", path)
	}
	return nil
}
