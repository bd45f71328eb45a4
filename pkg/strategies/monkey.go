package strategies

import (
	"tradeprobe/pkg/models"

	"github.com/shopspring/decimal"
)

const patience = 1

// Monkey follows short price runs. After more than patience consecutive
// upticks of a product's mid it wants to buy, after as many downticks it
// wants to sell.
type Monkey struct {
	prev    map[string]decimal.Decimal
	cntUp   map[string]int
	cntDown map[string]int
}

func NewMonkey() *Monkey {
	return &Monkey{
		prev:    make(map[string]decimal.Decimal),
		cntUp:   make(map[string]int),
		cntDown: make(map[string]int),
	}
}

// See records the latest mid for product.
func (m *Monkey) See(product string, mid decimal.Decimal) {
	prev, ok := m.prev[product]
	m.prev[product] = mid
	if !ok {
		return
	}

	switch {
	case mid.GreaterThan(prev):
		m.cntUp[product]++
		m.cntDown[product] = 0
	case mid.LessThan(prev):
		m.cntDown[product]++
		m.cntUp[product] = 0
	}
}

// Say returns the side the monkey wants for product, if any, and starts
// counting the run again.
func (m *Monkey) Say(product string) (models.OrderSide, bool) {
	if m.cntUp[product] > patience {
		m.cntUp[product] = 0
		return models.OrderSideBuy, true
	}
	if m.cntDown[product] > patience {
		m.cntDown[product] = 0
		return models.OrderSideSell, true
	}
	return "", false
}
