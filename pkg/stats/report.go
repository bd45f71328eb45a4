package stats

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"tradeprobe/pkg/accum"

	"github.com/shopspring/decimal"
)

// Snapshot is a point-in-time copy of one session's statistics.
type Snapshot struct {
	Team     string `json:"team"`
	Strategy string `json:"strategy"`

	OrdersSent         int64 `json:"ordersSent"`
	OrdersSucceeded    int64 `json:"ordersSucceeded"`
	OrdersFailed       int64 `json:"ordersFailed"`
	OrdersInconclusive int64 `json:"ordersInconclusive"`
	OrdersFilled       int64 `json:"ordersFilled"`
	Fills              int64 `json:"fills"`
	QuantitySent       int64 `json:"quantitySent"`
	QuantityFilled     int64 `json:"quantityFilled"`

	ProductionsSent         int64 `json:"productionsSent"`
	ProductionsSucceeded    int64 `json:"productionsSucceeded"`
	ProductionsFailed       int64 `json:"productionsFailed"`
	ProductionsInconclusive int64 `json:"productionsInconclusive"`

	ProtocolErrors  int64 `json:"protocolErrors"`
	Unexpected      int64 `json:"unexpected"`
	LateResponses   int64 `json:"lateResponses"`
	Orphans         int64 `json:"orphans"`
	TransportErrors int64 `json:"transportErrors"`
	DecodeErrors    int64 `json:"decodeErrors"`
	Dropped         int64 `json:"dropped"`

	Background int64            `json:"background"`
	Inbound    map[string]int64 `json:"inbound"`

	Profit        decimal.Decimal     `json:"profit"`
	BalanceChange decimal.NullDecimal `json:"balanceChange"`
	Latencies     []time.Duration     `json:"-"`
}

// Rate is a ratio whose denominator may be zero, in which case it is not
// applicable rather than an error.
type Rate struct {
	Num int64
	Den int64
}

func (r Rate) Applicable() bool { return r.Den > 0 }

// Percent returns 100*Num/Den, or 0 when not applicable.
func (r Rate) Percent() float64 {
	if !r.Applicable() {
		return 0
	}
	return 100 * float64(r.Num) / float64(r.Den)
}

func (r Rate) String() string {
	if !r.Applicable() {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", r.Percent())
}

func (r Rate) MarshalJSON() ([]byte, error) {
	if !r.Applicable() {
		return []byte("null"), nil
	}
	return json.Marshal(r.Percent())
}

type LatencySummary struct {
	Count int64         `json:"count"`
	Min   time.Duration `json:"min"`
	Avg   time.Duration `json:"avg"`
	Max   time.Duration `json:"max"`
}

func summarize(acc *accum.Accumulator) LatencySummary {
	if acc.Count() == 0 {
		return LatencySummary{}
	}
	return LatencySummary{
		Count: acc.Count(),
		Min:   seconds(acc.Min()),
		Avg:   seconds(acc.Avg()),
		Max:   seconds(acc.Max()),
	}
}

type SessionReport struct {
	Snapshot
	OrderSuccessRate      Rate           `json:"orderSuccessRate"`
	FillRate              Rate           `json:"fillRate"`
	ProductionSuccessRate Rate           `json:"productionSuccessRate"`
	Latency               LatencySummary `json:"latency"`
}

type Totals struct {
	OrdersSent              int64           `json:"ordersSent"`
	OrdersSucceeded         int64           `json:"ordersSucceeded"`
	OrdersFailed            int64           `json:"ordersFailed"`
	OrdersInconclusive      int64           `json:"ordersInconclusive"`
	OrdersFilled            int64           `json:"ordersFilled"`
	Fills                   int64           `json:"fills"`
	ProductionsSent         int64           `json:"productionsSent"`
	ProductionsSucceeded    int64           `json:"productionsSucceeded"`
	ProductionsFailed       int64           `json:"productionsFailed"`
	ProductionsInconclusive int64           `json:"productionsInconclusive"`
	ProtocolErrors          int64           `json:"protocolErrors"`
	Unexpected              int64           `json:"unexpected"`
	LateResponses           int64           `json:"lateResponses"`
	Orphans                 int64           `json:"orphans"`
	TransportErrors         int64           `json:"transportErrors"`
	Background              int64           `json:"background"`
	Dropped                 int64           `json:"dropped"`
	Profit                  decimal.Decimal `json:"profit"`

	OrderSuccessRate      Rate           `json:"orderSuccessRate"`
	FillRate              Rate           `json:"fillRate"`
	ProductionSuccessRate Rate           `json:"productionSuccessRate"`
	Latency               LatencySummary `json:"latency"`
}

// Rank is one row of a top-N table.
type Rank struct {
	Position int             `json:"position"`
	Team     string          `json:"team"`
	Value    decimal.Decimal `json:"value"`
}

type StrategySummary struct {
	Strategy  string          `json:"strategy"`
	Teams     int             `json:"teams"`
	AvgOrders float64         `json:"avgOrders"`
	AvgFills  float64         `json:"avgFills"`
	AvgProfit decimal.Decimal `json:"avgProfit"`
}

// Failure records a session excluded from the run.
type Failure struct {
	Team  string `json:"team"`
	Error string `json:"error"`
}

type Input struct {
	Sessions []Snapshot
	Failures []Failure
	Started  time.Time
	Ended    time.Time
	TopN     int
}

type Report struct {
	Started   time.Time     `json:"started"`
	Ended     time.Time     `json:"ended"`
	Duration  time.Duration `json:"duration"`
	Attempted int           `json:"attempted"`
	Connected int           `json:"connected"`

	Sessions []SessionReport `json:"sessions"`
	Totals   Totals          `json:"totals"`

	TopByVolume []Rank `json:"topByVolume"`
	TopByFills  []Rank `json:"topByFills"`
	TopByProfit []Rank `json:"topByProfit"`

	ByStrategy []StrategySummary `json:"byStrategy"`
	Failures   []Failure         `json:"failures"`
}

// Aggregate folds final session statistics into a report. It does not modify
// its input.
func Aggregate(in Input) Report {
	r := Report{
		Started:   in.Started,
		Ended:     in.Ended,
		Duration:  in.Ended.Sub(in.Started),
		Attempted: len(in.Sessions) + len(in.Failures),
		Connected: len(in.Sessions),
		Sessions:  make([]SessionReport, 0, len(in.Sessions)),
		Failures:  append([]Failure(nil), in.Failures...),
	}

	t := &r.Totals
	perSession := make([]*accum.Accumulator, 0, len(in.Sessions))
	for _, s := range in.Sessions {
		acc := accum.New()
		for _, d := range s.Latencies {
			acc.ObserveDuration(d)
		}
		perSession = append(perSession, acc)

		r.Sessions = append(r.Sessions, SessionReport{
			Snapshot:              s,
			OrderSuccessRate:      Rate{s.OrdersSucceeded, s.OrdersSent},
			FillRate:              Rate{s.OrdersFilled, s.OrdersSent},
			ProductionSuccessRate: Rate{s.ProductionsSucceeded, s.ProductionsSent},
			Latency:               summarize(acc),
		})

		t.OrdersSent += s.OrdersSent
		t.OrdersSucceeded += s.OrdersSucceeded
		t.OrdersFailed += s.OrdersFailed
		t.OrdersInconclusive += s.OrdersInconclusive
		t.OrdersFilled += s.OrdersFilled
		t.Fills += s.Fills
		t.ProductionsSent += s.ProductionsSent
		t.ProductionsSucceeded += s.ProductionsSucceeded
		t.ProductionsFailed += s.ProductionsFailed
		t.ProductionsInconclusive += s.ProductionsInconclusive
		t.ProtocolErrors += s.ProtocolErrors
		t.Unexpected += s.Unexpected
		t.LateResponses += s.LateResponses
		t.Orphans += s.Orphans
		t.TransportErrors += s.TransportErrors
		t.Background += s.Background
		t.Dropped += s.Dropped
		t.Profit = t.Profit.Add(s.Profit)
	}
	t.OrderSuccessRate = Rate{t.OrdersSucceeded, t.OrdersSent}
	t.FillRate = Rate{t.OrdersFilled, t.OrdersSent}
	t.ProductionSuccessRate = Rate{t.ProductionsSucceeded, t.ProductionsSent}
	t.Latency = summarize(accum.NewFromAccs(perSession))

	topN := in.TopN
	if topN <= 0 {
		topN = 3
	}
	r.TopByVolume = rank(in.Sessions, topN, func(s *Snapshot) decimal.Decimal {
		return decimal.NewFromInt(s.OrdersSent)
	})
	r.TopByFills = rank(in.Sessions, topN, func(s *Snapshot) decimal.Decimal {
		return decimal.NewFromInt(s.Fills)
	})
	r.TopByProfit = rank(in.Sessions, topN, func(s *Snapshot) decimal.Decimal {
		return s.Profit
	})
	r.ByStrategy = byStrategy(in.Sessions)

	return r
}

// rank orders sessions by value, descending, ties broken by team name.
func rank(sessions []Snapshot, n int, value func(*Snapshot) decimal.Decimal) []Rank {
	rows := make([]Rank, 0, len(sessions))
	for i := range sessions {
		rows = append(rows, Rank{Team: sessions[i].Team, Value: value(&sessions[i])})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if c := rows[i].Value.Cmp(rows[j].Value); c != 0 {
			return c > 0
		}
		return rows[i].Team < rows[j].Team
	})
	if len(rows) > n {
		rows = rows[:n]
	}
	for i := range rows {
		rows[i].Position = i + 1
	}
	return rows
}

func byStrategy(sessions []Snapshot) []StrategySummary {
	type group struct {
		teams  int
		orders int64
		fills  int64
		profit decimal.Decimal
	}
	groups := make(map[string]*group)
	for _, s := range sessions {
		g, ok := groups[s.Strategy]
		if !ok {
			g = &group{}
			groups[s.Strategy] = g
		}
		g.teams++
		g.orders += s.OrdersSent
		g.fills += s.Fills
		g.profit = g.profit.Add(s.Profit)
	}

	out := make([]StrategySummary, 0, len(groups))
	for name, g := range groups {
		n := float64(g.teams)
		out = append(out, StrategySummary{
			Strategy:  name,
			Teams:     g.teams,
			AvgOrders: float64(g.orders) / n,
			AvgFills:  float64(g.fills) / n,
			AvgProfit: g.profit.Div(decimal.NewFromInt(int64(g.teams))).Round(2),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Strategy < out[j].Strategy })
	return out
}
