package models

import "time"

type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// Account is immutable once created.
type Account struct {
	ID        string      `json:"account_id" db:"account_id"`
	Name      string      `json:"name" db:"name"`
	Type      AccountType `json:"type" db:"type"`
	Currency  string      `json:"currency" db:"currency"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
}

// AccountBalance is the running total of every entry posted to an account.
type AccountBalance struct {
	AccountID    string    `json:"account_id" db:"account_id"`
	Currency     string    `json:"currency" db:"currency"`
	BalanceCents int64     `json:"balance_cents" db:"balance_cents"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

type CreateAccountRequest struct {
	Name     string      `json:"name" validate:"required,max=200"`
	Type     AccountType `json:"type" validate:"required,oneof=ASSET LIABILITY REVENUE EXPENSE"`
	Currency string      `json:"currency" validate:"required,len=3,alpha,uppercase"`
}
