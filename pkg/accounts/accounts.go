package accounts

import (
	"sort"
	"sync"

	"tradeprobe/pkg/models"

	"github.com/shopspring/decimal"
)

// Accounts is the run-wide registry of team account snapshots.
type Accounts struct {
	data map[string]*models.Account
	mux  sync.RWMutex
}

func NewAccounts() *Accounts {
	return &Accounts{
		data: make(map[string]*models.Account),
	}
}

// AddAccount registers a fresh account for team, replacing any previous one.
func (a *Accounts) AddAccount(team string) *models.Account {
	a.mux.Lock()
	defer a.mux.Unlock()

	acc := models.NewAccount(team)
	a.data[team] = acc
	return acc
}

func (a *Accounts) GetAccount(team string) *models.Account {
	a.mux.RLock()
	defer a.mux.RUnlock()

	return a.data[team]
}

// Teams lists registered teams in name order.
func (a *Accounts) Teams() []string {
	a.mux.RLock()
	defer a.mux.RUnlock()

	teams := make([]string, 0, len(a.data))
	for team := range a.data {
		teams = append(teams, team)
	}
	sort.Strings(teams)
	return teams
}

// BalanceChange returns the team's balance change since login, if known.
func (a *Accounts) BalanceChange(team string) decimal.NullDecimal {
	acc := a.GetAccount(team)
	if acc == nil || acc.UpdatedAt().IsZero() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(acc.BalanceChange())
}
