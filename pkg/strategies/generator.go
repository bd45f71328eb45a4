package strategies

import (
	"math/rand"
	"sort"
	"time"

	"tradeprobe/pkg/models"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Quotes is the market view strategies price against.
type Quotes interface {
	MidPrice(product string) (decimal.Decimal, bool)
}

// Env is the per-session state generators draw from. It lives as long as
// the engine, across phases.
type Env struct {
	Profile models.StrategyProfile
	Rand    *rand.Rand
	Index   int
	Market  Quotes

	monkey *Monkey
	trades int
}

func NewEnv(profile models.StrategyProfile, index int, seed int64, market Quotes) *Env {
	return &Env{
		Profile: profile,
		Rand:    rand.New(rand.NewSource(seed)),
		Index:   index,
		Market:  market,
		monkey:  NewMonkey(),
	}
}

func (env *Env) between(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + env.Rand.Intn(hi-lo+1)
}

func (env *Env) mid(product string) (decimal.Decimal, bool) {
	if env.Market == nil {
		return decimal.Zero, false
	}
	return env.Market.MidPrice(product)
}

func (env *Env) pick(products []string) string {
	return products[env.Rand.Intn(len(products))]
}

// Generator decides what a session does while a phase is active.
type Generator interface {
	Name() string
	// Intervals returns the production and trading cadence for a profile.
	// Zero disables the activity.
	Intervals(p models.StrategyProfile) (production, trading time.Duration)
	NextProduction(env *Env) (product string, qty int, ok bool)
	NextOrder(env *Env) (models.OrderIntent, bool)
}

// Mix is a Generator that follows each session's profile, scaled by phase.
type Mix struct {
	name            string
	productionScale float64
	tradingScale    float64
	// spread is the largest relative distance of a limit price from mid.
	spread float64
	// cross prices limit orders through mid to compete for fills.
	cross bool
}

var (
	// Strategy runs every profile as configured.
	Strategy = &Mix{name: "strategy", productionScale: 1, tradingScale: 1, spread: 0.02}
	// BurstProduction produces four times as often and barely trades.
	BurstProduction = &Mix{name: "burst-production", productionScale: 0.25, tradingScale: 4, spread: 0.02}
	// MixedTrading is the steady state.
	MixedTrading = &Mix{name: "mixed-trading", productionScale: 1, tradingScale: 1, spread: 0.02}
	// CompetitiveTrading trades twice as often with prices crossing mid.
	CompetitiveTrading = &Mix{name: "competitive-trading", productionScale: 2, tradingScale: 0.5, spread: 0.005, cross: true}
)

var generators = map[string]Generator{
	Strategy.Name():           Strategy,
	BurstProduction.Name():    BurstProduction,
	MixedTrading.Name():       MixedTrading,
	CompetitiveTrading.Name(): CompetitiveTrading,
}

func GeneratorByName(name string) (Generator, error) {
	g, ok := generators[name]
	if !ok {
		return nil, errors.Errorf("unknown generator %q (have %v)", name, GeneratorNames())
	}
	return g, nil
}

func GeneratorNames() []string {
	names := make([]string, 0, len(generators))
	for name := range generators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Mix) Name() string { return m.name }

func (m *Mix) Intervals(p models.StrategyProfile) (time.Duration, time.Duration) {
	return scale(p.ProductionInterval, m.productionScale), scale(p.TradingInterval, m.tradingScale)
}

func scale(d time.Duration, f float64) time.Duration {
	if d <= 0 || f <= 0 {
		return 0
	}
	return time.Duration(float64(d) * f)
}

// productionSet is what a profile produces: producers make raw materials,
// refiners make intermediate goods, everyone else works from its preferred
// products.
func productionSet(p models.StrategyProfile) []string {
	switch p.Kind {
	case models.StrategyProducer:
		return preferred(p.Products, models.RawMaterials)
	case models.StrategyRefiner:
		return preferred(p.Products, models.IntermediateGoods)
	}
	if len(p.Products) > 0 {
		return p.Products
	}
	return models.Products
}

// preferred narrows candidates to the profile's products when they overlap.
func preferred(products, candidates []string) []string {
	var out []string
	for _, c := range candidates {
		for _, p := range products {
			if p == c {
				out = append(out, c)
				break
			}
		}
	}
	if len(out) == 0 {
		return candidates
	}
	return out
}

func (m *Mix) NextProduction(env *Env) (string, int, bool) {
	product := env.pick(productionSet(env.Profile))

	var qty int
	switch env.Profile.Kind {
	case models.StrategyProducer:
		qty = env.between(5, 15)
	case models.StrategyRefiner:
		qty = env.between(2, 8)
	default:
		qty = env.between(1, 5)
	}
	return product, qty, true
}

func (m *Mix) NextOrder(env *Env) (models.OrderIntent, bool) {
	p := env.Profile
	products := p.Products
	if len(products) == 0 {
		products = models.Products
	}
	product := env.pick(products)

	mid, hasMid := env.mid(product)
	if hasMid {
		env.monkey.See(product, mid)
	}

	in := models.OrderIntent{
		Side:    m.side(env, product),
		Mode:    models.OrderModeLimit,
		Product: product,
		Qty:     quantity(env),
		Note:    m.name,
	}
	env.trades++

	if p.Aggressive() {
		in.Mode = models.OrderModeMarket
		return in, true
	}
	in.LimitPrice = m.limitPrice(env, product, in.Side, mid, hasMid)
	return in, true
}

func (m *Mix) side(env *Env, product string) models.OrderSide {
	random := func(buyBias float64) models.OrderSide {
		if env.Rand.Float64() < buyBias {
			return models.OrderSideBuy
		}
		return models.OrderSideSell
	}

	switch env.Profile.Kind {
	case models.StrategyMarketMaker:
		if env.trades%2 == 0 {
			return models.OrderSideBuy
		}
		return models.OrderSideSell
	case models.StrategyTrader, models.StrategyArbitrage:
		if side, ok := env.monkey.Say(product); ok {
			return side
		}
		return random(0.5)
	case models.StrategyProducer:
		return random(0.3)
	case models.StrategyRefiner:
		return random(0.7)
	}
	return random(0.5)
}

func quantity(env *Env) int {
	switch {
	case env.Profile.Kind == models.StrategyConservative || env.Profile.Risk == models.RiskLow:
		return env.between(1, 3)
	case env.Profile.Aggressive():
		return env.between(3, 10)
	}
	return env.between(1, 5)
}

var minPrice = decimal.RequireFromString("0.01")

// limitPrice draws a price around the last mid, or inside the product's
// static range when no ticker was seen yet.
func (m *Mix) limitPrice(env *Env, product string, side models.OrderSide, mid decimal.Decimal, hasMid bool) decimal.Decimal {
	if !hasMid {
		r := models.PriceRangeOf(product)
		span := r.Max.Sub(r.Min)
		return r.Min.Add(span.Mul(decimal.NewFromFloat(env.Rand.Float64()))).Round(2)
	}

	var offset float64
	if m.cross {
		offset = env.Rand.Float64() * m.spread
		if side == models.OrderSideSell {
			offset = -offset
		}
	} else {
		offset = (2*env.Rand.Float64() - 1) * m.spread
	}

	price := mid.Mul(decimal.NewFromFloat(1 + offset)).Round(2)
	if price.LessThan(minPrice) {
		return minPrice
	}
	return price
}
