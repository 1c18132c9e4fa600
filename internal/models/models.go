package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User represents a user account as returned by the API.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// Friend is one entry in the authenticated user's friend list. The id is
// the friend's student profile id, which is also the id used for removal
// and for expense share payees.
type Friend struct {
	ID   int64 `json:"id"`
	User User  `json:"user"`
}

// Expense represents an expense record. Amount is a decimal string on the
// wire; People lists the participants the server knows about.
type Expense struct {
	ID          int64           `json:"id"`
	Title       string          `json:"title"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
	Student     *Friend         `json:"student,omitempty"`
	People      []Friend        `json:"people,omitempty"`
	Date        time.Time       `json:"date"`
}

// ExpenseCreate is the payload for creating or updating an expense.
// PeopleIDs is write-only; reads come back expanded under "people".
type ExpenseCreate struct {
	Title     string          `json:"title"`
	Amount    decimal.Decimal `json:"amount"`
	PeopleIDs []int64         `json:"people_ids,omitempty"`
}

// Share is one payee's owed portion of an expense. The server uses an
// asymmetric serialization: writes carry the payee id, reads carry the
// payee's username.
type Share struct {
	ID            int64           `json:"id"`
	ExpenseID     int64           `json:"expense,omitempty"`
	PayeeUsername string          `json:"payee_username,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
}

// ShareCreate is the write shape for creating a share under an expense.
type ShareCreate struct {
	Payee  int64           `json:"payee"`
	Amount decimal.Decimal `json:"amount"`
}

// Profile is the authenticated user's student profile. Singleton per
// session; updated via partial payloads.
type Profile struct {
	User          User            `json:"user"`
	Department    string          `json:"department,omitempty"`
	WalletBalance decimal.Decimal `json:"wallet_balance"`
	Friends       []Friend        `json:"friends,omitempty"`
}

// ProfileUpdate is the partial-update payload for the profile endpoint.
// Zero-valued fields are omitted so the server keeps existing values.
type ProfileUpdate struct {
	Department string `json:"department,omitempty"`
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
}

// TokenPair is the access/refresh credential pair issued at login.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}
