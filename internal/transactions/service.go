// Package transactions serves transaction history and payees, and submits
// transfers and payments.
package transactions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bankdash/bankdash/backend/go-gateway/internal/apiclient"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/cache"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/config"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/models"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/sessions"
	"github.com/bankdash/bankdash/backend/go-gateway/pkg/logger"
)

const payeesKey = "all"

// Accounts is the part of the accounts service transfers depend on.
type Accounts interface {
	Balance(ctx context.Context, id string) (decimal.Decimal, bool)
	InvalidateAccount(id string)
}

type Service struct {
	client   *apiclient.Client
	accounts Accounts
	ttl      config.CacheConfig
	now      func() time.Time

	list    *cache.Cache[[]models.Transaction]
	byAcct  *cache.Cache[[]models.Transaction]
	details *cache.Cache[models.Transaction]
	payees  *cache.Cache[[]models.Payee]
}

func NewService(client *apiclient.Client, mgr *sessions.Manager, accounts Accounts, ttl config.CacheConfig, opts ...cache.Option) *Service {
	s := &Service{
		client:   client,
		accounts: accounts,
		ttl:      ttl,
		now:      time.Now,
		list:     cache.New[[]models.Transaction]("transactions", opts...),
		byAcct:   cache.New[[]models.Transaction]("account_transactions", opts...),
		details:  cache.New[models.Transaction]("transaction_details", opts...),
		payees:   cache.New[[]models.Payee]("payees", opts...),
	}
	mgr.OnChange(func(uint64) { s.Reset() })
	return s
}

// SetClock replaces the clock used to validate payment dates.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

func (s *Service) Reset() {
	s.list.InvalidateAll()
	s.byAcct.InvalidateAll()
	s.details.InvalidateAll()
	s.payees.InvalidateAll()
}

func (s *Service) List(ctx context.Context, params url.Values, force bool) ([]models.Transaction, error) {
	params = nonEmpty(params)
	return s.list.Read(ctx, cache.ParamsKey(params), s.ttl.TransactionsTTL, func(ctx context.Context) ([]models.Transaction, error) {
		return s.fetchList(ctx, "/transactions", params, force)
	}, force)
}

func (s *Service) ByAccount(ctx context.Context, accountID string, params url.Values, force bool) ([]models.Transaction, error) {
	if strings.TrimSpace(accountID) == "" {
		return nil, apiclient.NewValidationError("accountId", "is required")
	}
	params = nonEmpty(params)
	key := cache.Key(accountID, cache.ParamsKey(params))
	return s.byAcct.Read(ctx, key, s.ttl.TransactionsTTL, func(ctx context.Context) ([]models.Transaction, error) {
		return s.fetchList(ctx, "/transactions/account/"+url.PathEscape(accountID), params, force)
	}, force)
}

func (s *Service) fetchList(ctx context.Context, path string, params url.Values, force bool) ([]models.Transaction, error) {
	var raw json.RawMessage
	if err := s.client.Get(ctx, path, params, force, &raw); err != nil {
		return nil, err
	}
	return apiclient.DecodeList[models.Transaction](raw, "transactions", nil)
}

func (s *Service) Get(ctx context.Context, id string, force bool) (models.Transaction, error) {
	if strings.TrimSpace(id) == "" {
		return models.Transaction{}, apiclient.NewValidationError("id", "is required")
	}
	return s.details.Read(ctx, cache.Key(id), s.ttl.TransactionDetailsTTL, func(ctx context.Context) (models.Transaction, error) {
		var raw json.RawMessage
		if err := s.client.Get(ctx, "/transactions/"+url.PathEscape(id), nil, force, &raw); err != nil {
			return models.Transaction{}, err
		}
		return decodeTransaction(raw)
	}, force)
}

// transferBody is the backend's field naming for transfers.
type transferBody struct {
	SourceAccountID      string          `json:"source_account_id"`
	DestinationAccountID string          `json:"destination_account_id"`
	Amount               decimal.Decimal `json:"amount"`
	Description          string          `json:"description,omitempty"`
}

// Transfer moves money between two of the user's accounts.
func (s *Service) Transfer(ctx context.Context, req models.TransferRequest) (map[string]any, error) {
	if err := s.validateTransfer(ctx, req); err != nil {
		return nil, err
	}
	var out map[string]any
	err := s.client.Post(ctx, "/transactions/transfer", transferBody{
		SourceAccountID:      req.SourceAccountID,
		DestinationAccountID: req.DestinationAccountID,
		Amount:               req.Amount,
		Description:          req.Description,
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("transfer failed: %w", err)
	}
	s.list.InvalidateAll()
	for _, id := range []string{req.SourceAccountID, req.DestinationAccountID} {
		s.byAcct.InvalidatePrefix(cache.Key(id) + "|")
		if s.accounts != nil {
			s.accounts.InvalidateAccount(id)
		}
	}
	logger.Infof("transactions: transfer %s -> %s amount=%s", req.SourceAccountID, req.DestinationAccountID, req.Amount)
	return out, nil
}

func (s *Service) validateTransfer(ctx context.Context, req models.TransferRequest) error {
	if req.SourceAccountID == "" {
		return apiclient.NewValidationError("sourceAccountId", "is required")
	}
	if req.DestinationAccountID == "" {
		return apiclient.NewValidationError("destinationAccountId", "is required")
	}
	if req.SourceAccountID == req.DestinationAccountID {
		return apiclient.NewValidationError("destinationAccountId", "must differ from the source account")
	}
	if !req.Amount.IsPositive() {
		return apiclient.NewValidationError("amount", "must be greater than zero")
	}
	if s.accounts != nil {
		if bal, ok := s.accounts.Balance(ctx, req.SourceAccountID); ok && req.Amount.GreaterThan(bal) {
			return apiclient.NewValidationError("amount", "exceeds the available balance")
		}
	}
	return nil
}

// Payment submits a payment to a payee or biller. A PaymentAmbiguousAuthError
// means the payment may have gone through.
func (s *Service) Payment(ctx context.Context, req models.PaymentRequest) (map[string]any, error) {
	if err := s.validatePayment(req); err != nil {
		return nil, err
	}
	var out map[string]any
	if err := s.client.Post(ctx, "/transactions/payment", req, &out); err != nil {
		return nil, err
	}
	s.list.InvalidateAll()
	if req.SourceAccountID != "" {
		s.byAcct.InvalidatePrefix(cache.Key(req.SourceAccountID) + "|")
		if s.accounts != nil {
			s.accounts.InvalidateAccount(req.SourceAccountID)
		}
	}
	logger.Infof("transactions: payment from %s amount=%s", req.SourceAccountID, req.Amount)
	return out, nil
}

func (s *Service) validatePayment(req models.PaymentRequest) error {
	if req.SourceAccountID == "" {
		return apiclient.NewValidationError("sourceAccountId", "is required")
	}
	if req.PayeeID == "" && req.BillerID == "" {
		return apiclient.NewValidationError("payeeId", "a payee or biller is required")
	}
	if !req.Amount.IsPositive() {
		return apiclient.NewValidationError("amount", "must be greater than zero")
	}
	if req.PaymentDate != "" {
		day, err := parseDate(req.PaymentDate)
		if err != nil {
			return apiclient.NewValidationError("paymentDate", "is not a valid date")
		}
		now := s.now()
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		if day.Before(today) {
			return apiclient.NewValidationError("paymentDate", "must not be in the past")
		}
	}
	return nil
}

// PaymentConfirmation looks up the outcome of a submitted payment.
func (s *Service) PaymentConfirmation(ctx context.Context, id string) (map[string]any, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apiclient.NewValidationError("id", "is required")
	}
	var out map[string]any
	err := s.client.Get(ctx, "/transactions/payment/"+url.PathEscape(id)+"/confirmation", nil, true, &out)
	return out, err
}

func (s *Service) Payees(ctx context.Context, force bool) ([]models.Payee, error) {
	return s.payees.Read(ctx, payeesKey, s.ttl.PayeesTTL, func(ctx context.Context) ([]models.Payee, error) {
		var raw json.RawMessage
		if err := s.client.Get(ctx, "/transactions/payees", nil, force, &raw); err != nil {
			return nil, err
		}
		return apiclient.DecodeList[models.Payee](raw, "payees", nil)
	}, force)
}

func (s *Service) AddPayee(ctx context.Context, p models.Payee) (map[string]any, error) {
	if strings.TrimSpace(p.Name) == "" {
		return nil, apiclient.NewValidationError("name", "is required")
	}
	var out map[string]any
	if err := s.client.Post(ctx, "/transactions/payees", p, &out); err != nil {
		return nil, err
	}
	s.payees.InvalidateAll()
	return out, nil
}

func decodeTransaction(raw json.RawMessage) (models.Transaction, error) {
	raw = bytes.TrimSpace(raw)
	var env struct {
		Transaction *models.Transaction `json:"transaction"`
	}
	if err := json.Unmarshal(raw, &env); err == nil && env.Transaction != nil {
		return *env.Transaction, nil
	}
	var tx models.Transaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return tx, &apiclient.MalformedResponseError{Reason: "invalid transaction payload", Cause: err}
	}
	return tx, nil
}

// parseDate accepts a calendar date or an RFC 3339 timestamp and returns the UTC calendar day.
func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

func nonEmpty(params url.Values) url.Values {
	if len(params) == 0 {
		return nil
	}
	out := url.Values{}
	for k, vs := range params {
		for _, v := range vs {
			if v != "" {
				out.Add(k, v)
			}
		}
	}
	return out
}
