// Package split computes per-payee share amounts and drives the
// expense-then-shares submission sequence.
package split

import (
	"context"
	"errors"
	"fmt"

	"splitbook/internal/api"
	"splitbook/internal/models"

	"github.com/shopspring/decimal"
)

// ErrNoPayees is returned when a split is requested with no payees.
// Submission requires at least one payee; an expense with no payees is a
// plain personal expense and never reaches the calculator.
var ErrNoPayees = errors.New("split: at least one payee required")

// ErrNonPositiveAmount is returned for zero or negative totals.
var ErrNonPositiveAmount = errors.New("split: amount must be positive")

// ShareAmount computes one payee's share of total split among n payees
// plus the implicit payer: total/(n+1) rounded half-up to 2 decimal
// places. The same amount applies to every payee; the payer's retained
// portion is implicit and never persisted. Rounding drift against the
// total is accepted, not corrected.
func ShareAmount(total decimal.Decimal, payees int) (decimal.Decimal, error) {
	if payees < 1 {
		return decimal.Zero, ErrNoPayees
	}
	if !total.IsPositive() {
		return decimal.Zero, ErrNonPositiveAmount
	}
	participants := decimal.NewFromInt(int64(payees) + 1)
	return total.Div(participants).Round(2), nil
}

// Result reports what one submission persisted. Shares holds the
// records created before any failure.
type Result struct {
	Expense models.Expense
	Shares  []models.Share
}

// Submit creates the expense, then creates one share per payee
// sequentially in the given order. Expense and shares are not
// transactional: a failure partway through returns the error together
// with everything persisted so far, and no compensating rollback is
// attempted.
func Submit(ctx context.Context, client *api.Client, title string, total decimal.Decimal, payeeIDs []int64) (Result, error) {
	share, err := ShareAmount(total, len(payeeIDs))
	if err != nil {
		return Result{}, err
	}

	expense, err := client.CreateExpense(ctx, models.ExpenseCreate{
		Title:  title,
		Amount: total,
	})
	if err != nil {
		return Result{}, fmt.Errorf("create expense: %w", err)
	}

	result := Result{Expense: expense}
	for _, payeeID := range payeeIDs {
		created, err := client.CreateShare(ctx, expense.ID, models.ShareCreate{
			Payee:  payeeID,
			Amount: share,
		})
		if err != nil {
			return result, fmt.Errorf("create share for payee %d: %w", payeeID, err)
		}
		result.Shares = append(result.Shares, created)
	}
	return result, nil
}
