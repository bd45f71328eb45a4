package models

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

type StrategyKind string

const (
	StrategyProducer     StrategyKind = "Producer"
	StrategyRefiner      StrategyKind = "Refiner"
	StrategyTrader       StrategyKind = "Trader"
	StrategyAggressive   StrategyKind = "Aggressive"
	StrategyConservative StrategyKind = "Conservative"
	StrategyMarketMaker  StrategyKind = "Market_Maker"
	StrategyArbitrage    StrategyKind = "Arbitrage"
)

// StrategyKinds lists every kind in a stable order.
var StrategyKinds = []StrategyKind{
	StrategyProducer,
	StrategyRefiner,
	StrategyTrader,
	StrategyAggressive,
	StrategyConservative,
	StrategyMarketMaker,
	StrategyArbitrage,
}

func ParseStrategyKind(s string) (StrategyKind, error) {
	norm := strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.ToLower(s))
	for _, k := range StrategyKinds {
		if strings.ReplaceAll(strings.ToLower(string(k)), "_", "") == norm {
			return k, nil
		}
	}
	return "", errors.Errorf("unknown strategy %q", s)
}

type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

func ParseRiskLevel(s string) (RiskLevel, error) {
	switch strings.ToLower(s) {
	case "low":
		return RiskLow, nil
	case "", "medium":
		return RiskMedium, nil
	case "high":
		return RiskHigh, nil
	}
	return "", errors.Errorf("unknown risk level %q", s)
}

// StrategyProfile configures one team. It is not modified after construction.
type StrategyProfile struct {
	Token              string
	Name               string
	Species            string
	Kind               StrategyKind
	Risk               RiskLevel
	Products           []string
	ProductionInterval time.Duration
	TradingInterval    time.Duration
}

// Aggressive profiles trade with market orders.
func (p StrategyProfile) Aggressive() bool {
	return p.Kind == StrategyAggressive || p.Risk == RiskHigh
}

// Label is a short printable identity for logs and reports.
func (p StrategyProfile) Label() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Token
}
