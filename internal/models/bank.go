package models

import (
	"github.com/shopspring/decimal"
)

type Account struct {
	ID            string          `json:"id"`
	AccountNumber string          `json:"account_number,omitempty"`
	AccountType   string          `json:"account_type,omitempty"`
	Nickname      string          `json:"nickname,omitempty"`
	Balance       decimal.Decimal `json:"balance"`
	Currency      string          `json:"currency,omitempty"`
	Status        string          `json:"status,omitempty"`
	CreatedAt     string          `json:"created_at,omitempty"`
}

type OpenAccountRequest struct {
	AccountType    string          `json:"account_type"`
	Nickname       string          `json:"nickname,omitempty"`
	InitialDeposit decimal.Decimal `json:"initial_deposit"`
	Currency       string          `json:"currency,omitempty"`
}

type AccountSettings struct {
	Nickname      string `json:"nickname,omitempty"`
	Notifications *bool  `json:"notifications,omitempty"`
	Overdraft     *bool  `json:"overdraft_protection,omitempty"`
}

type Statement struct {
	ID          string          `json:"id"`
	AccountID   string          `json:"account_id"`
	PeriodStart string          `json:"period_start,omitempty"`
	PeriodEnd   string          `json:"period_end,omitempty"`
	Opening     decimal.Decimal `json:"opening_balance"`
	Closing     decimal.Decimal `json:"closing_balance"`
	URL         string          `json:"url,omitempty"`
}

type Transaction struct {
	ID                   string          `json:"id"`
	Type                 string          `json:"type"`
	Amount               decimal.Decimal `json:"amount"`
	Currency             string          `json:"currency,omitempty"`
	Status               string          `json:"status,omitempty"`
	Description          string          `json:"description,omitempty"`
	SourceAccountID      string          `json:"source_account_id,omitempty"`
	DestinationAccountID string          `json:"destination_account_id,omitempty"`
	PayeeID              string          `json:"payee_id,omitempty"`
	BillerID             string          `json:"biller_id,omitempty"`
	CreatedAt            string          `json:"created_at,omitempty"`
}

// TransferRequest uses camelCase on input; the backend expects snake_case ids.
type TransferRequest struct {
	SourceAccountID      string          `json:"sourceAccountId"`
	DestinationAccountID string          `json:"destinationAccountId"`
	Amount               decimal.Decimal `json:"amount"`
	Description          string          `json:"description,omitempty"`
}

type PaymentRequest struct {
	SourceAccountID string          `json:"sourceAccountId"`
	PayeeID         string          `json:"payeeId,omitempty"`
	BillerID        string          `json:"billerId,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	PaymentDate     string          `json:"paymentDate,omitempty"`
	Reference       string          `json:"reference,omitempty"`
	Description     string          `json:"description,omitempty"`
}

type Payee struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	AccountNumber string `json:"account_number,omitempty"`
	BankName      string `json:"bank_name,omitempty"`
	RoutingNumber string `json:"routing_number,omitempty"`
	Nickname      string `json:"nickname,omitempty"`
}

type Biller struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
	Logo     string `json:"logo_url,omitempty"`
}

type SavedBiller struct {
	ID            string `json:"id"`
	BillerID      string `json:"biller_id"`
	Name          string `json:"name,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
	Nickname      string `json:"nickname,omitempty"`
	IsFavorite    bool   `json:"is_favorite"`
}

type SecuritySettings struct {
	TwoFactorEnabled   bool   `json:"two_factor_enabled"`
	LoginAlerts        bool   `json:"login_alerts"`
	TransactionAlerts  bool   `json:"transaction_alerts"`
	SessionTimeoutMins int    `json:"session_timeout_minutes,omitempty"`
	TwoFactorMethod    string `json:"two_factor_method,omitempty"`
}
