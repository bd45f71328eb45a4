package models

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Account is a team's balance and inventory as last reported by the server.
type Account struct {
	team    string
	species string

	initialBalance decimal.Decimal
	balance        decimal.Decimal
	inventory      map[string]int
	updatedAt      time.Time

	mux sync.RWMutex
}

func NewAccount(team string) *Account {
	return &Account{
		team:      team,
		inventory: make(map[string]int),
	}
}

// Seed records the login snapshot.
func (a *Account) Seed(login *LoginOK, updatedAt time.Time) {
	a.mux.Lock()
	defer a.mux.Unlock()

	if login.Team != "" {
		a.team = login.Team
	}
	a.species = login.Species
	a.initialBalance = login.InitialBalance
	if a.initialBalance.IsZero() {
		a.initialBalance = login.CurrentBalance
	}
	a.balance = login.CurrentBalance
	a.inventory = copyInventory(login.Inventory)
	a.updatedAt = updatedAt
}

func (a *Account) UpdateBalance(balance decimal.Decimal, updatedAt time.Time) {
	a.mux.Lock()
	defer a.mux.Unlock()

	a.balance = balance
	a.updatedAt = updatedAt
}

func (a *Account) SetInventory(inventory map[string]int, updatedAt time.Time) {
	a.mux.Lock()
	defer a.mux.Unlock()

	a.inventory = copyInventory(inventory)
	a.updatedAt = updatedAt
}

func (a *Account) Team() string {
	a.mux.RLock()
	defer a.mux.RUnlock()
	return a.team
}

func (a *Account) Species() string {
	a.mux.RLock()
	defer a.mux.RUnlock()
	return a.species
}

func (a *Account) Balance() decimal.Decimal {
	a.mux.RLock()
	defer a.mux.RUnlock()
	return a.balance
}

// BalanceChange is the current balance minus the balance at login.
func (a *Account) BalanceChange() decimal.Decimal {
	a.mux.RLock()
	defer a.mux.RUnlock()
	return a.balance.Sub(a.initialBalance)
}

func (a *Account) Inventory() map[string]int {
	a.mux.RLock()
	defer a.mux.RUnlock()
	return copyInventory(a.inventory)
}

func (a *Account) UpdatedAt() time.Time {
	a.mux.RLock()
	defer a.mux.RUnlock()
	return a.updatedAt
}

func copyInventory(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
