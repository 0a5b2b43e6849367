// Package calculator holds the pure money arithmetic behind settlements,
// pools and expense charts.
package calculator

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mmynk/cooper/internal/models"
)

// UnknownCategory labels expenses whose category cannot be resolved.
const UnknownCategory = "Unknown"

// SumExpenses returns the total amount spent.
func SumExpenses(expenses []*models.Expense) decimal.Decimal {
	total := decimal.Zero
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	return total
}

// EqualShare is what each of n participants owes for total, as a negative
// balance rounded to cents. n must be positive. Exact halves round away
// from zero (0.05 over 2 gives -0.03), not to even as float rounding may.
func EqualShare(total decimal.Decimal, n int) decimal.Decimal {
	return total.Div(decimal.NewFromInt(int64(n))).Neg().Round(2)
}

// Settle divides the event's total spend equally among participants.
// Every participant carries the same balance regardless of who paid or
// deposited. An event with no participants settles to an empty list.
func Settle(eventID string, expenses []*models.Expense, participantIDs []string) models.Settlement {
	settlement := models.Settlement{EventID: eventID, Balances: []models.Balance{}}
	if len(participantIDs) == 0 {
		return settlement
	}

	share := EqualShare(SumExpenses(expenses), len(participantIDs))
	for _, id := range participantIDs {
		settlement.Balances = append(settlement.Balances, models.Balance{UserID: id, NetBalance: share})
	}
	return settlement
}

// Pool totals an event's deposits. Contributors keeps one entry per
// deposit; repeated deposits by the same user are not merged.
func Pool(eventID string, contributions []models.Contribution) models.Pool {
	pool := models.Pool{EventID: eventID, Total: decimal.Zero, Contributors: []models.Contribution{}}
	for _, c := range contributions {
		pool.Total = pool.Total.Add(c.Amount)
		pool.Contributors = append(pool.Contributors, c)
	}
	return pool
}

// TotalsByCategory sums expenses per category name, sorted by name.
// categoryNames maps category ID to name.
func TotalsByCategory(expenses []*models.Expense, categoryNames map[string]string) []models.CategoryTotal {
	sums := make(map[string]decimal.Decimal)
	for _, e := range expenses {
		name, ok := categoryNames[e.CategoryID]
		if !ok || name == "" {
			name = UnknownCategory
		}
		sums[name] = sums[name].Add(e.Amount)
	}

	totals := make([]models.CategoryTotal, 0, len(sums))
	for name, amount := range sums {
		totals = append(totals, models.CategoryTotal{Category: name, Amount: amount})
	}
	sort.Slice(totals, func(i, j int) bool { return totals[i].Category < totals[j].Category })
	return totals
}
