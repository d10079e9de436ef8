// Package admin exposes the back-office endpoints. Every call first asks the
// backend whether the current user is an administrator.
package admin

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/bankdash/bankdash/backend/go-gateway/internal/apiclient"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/models"
)

// Verifier confirms admin rights with the backend.
type Verifier interface {
	VerifyAdmin(ctx context.Context) error
}

// Account is an account row enriched with its owner.
type Account struct {
	ID            string          `json:"id"`
	AccountNumber string          `json:"accountNumber"`
	AccountType   string          `json:"accountType"`
	Balance       decimal.Decimal `json:"balance"`
	Currency      string          `json:"currency,omitempty"`
	IsActive      bool            `json:"isActive"`
	CreatedAt     string          `json:"createdAt,omitempty"`
	UserID        string          `json:"userId"`
	OwnerName     string          `json:"ownerName"`
	OwnerEmail    string          `json:"ownerEmail"`
}

type rawAccount struct {
	ID            string          `json:"id"`
	AccountNumber string          `json:"account_number"`
	AccountType   string          `json:"account_type"`
	Balance       decimal.Decimal `json:"balance"`
	Currency      string          `json:"currency"`
	IsActive      bool            `json:"is_active"`
	CreatedAt     string          `json:"created_at"`
	UserID        string          `json:"user_id"`
}

type Service struct {
	client *apiclient.Client
	verify Verifier
}

func NewService(client *apiclient.Client, verify Verifier) *Service {
	return &Service{client: client, verify: verify}
}

func (s *Service) Users(ctx context.Context, params url.Values) ([]models.User, error) {
	if err := s.verify.VerifyAdmin(ctx); err != nil {
		return nil, err
	}
	return s.users(ctx, params)
}

func (s *Service) users(ctx context.Context, params url.Values) ([]models.User, error) {
	var raw json.RawMessage
	if err := s.client.Get(ctx, "/admin/users", params, false, &raw); err != nil {
		return nil, err
	}
	return apiclient.DecodeList[models.User](raw, "users", nil)
}

func (s *Service) User(ctx context.Context, id string) (map[string]any, error) {
	if err := s.verify.VerifyAdmin(ctx); err != nil {
		return nil, err
	}
	var out map[string]any
	err := s.client.Get(ctx, "/admin/users/"+url.PathEscape(id), nil, true, &out)
	return out, err
}

func (s *Service) UpdateUser(ctx context.Context, id string, changes map[string]any) (map[string]any, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apiclient.NewValidationError("id", "is required")
	}
	if err := s.verify.VerifyAdmin(ctx); err != nil {
		return nil, err
	}
	var out map[string]any
	err := s.client.Put(ctx, "/admin/users/"+url.PathEscape(id), changes, &out)
	return out, err
}

// Accounts lists every account with the owner's name and email attached.
func (s *Service) Accounts(ctx context.Context) ([]Account, error) {
	if err := s.verify.VerifyAdmin(ctx); err != nil {
		return nil, err
	}

	var (
		accounts []rawAccount
		users    []models.User
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var raw json.RawMessage
		if err := s.client.Get(gctx, "/admin/accounts", nil, false, &raw); err != nil {
			return err
		}
		var err error
		accounts, err = apiclient.DecodeList[rawAccount](raw, "accounts", nil)
		return err
	})
	g.Go(func() error {
		var err error
		users, err = s.users(gctx, nil)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	owners := make(map[string]models.User, len(users))
	for _, u := range users {
		owners[u.ID] = u
	}
	out := make([]Account, 0, len(accounts))
	for _, a := range accounts {
		acc := Account{
			ID:            a.ID,
			AccountNumber: a.AccountNumber,
			AccountType:   a.AccountType,
			Balance:       a.Balance,
			Currency:      a.Currency,
			IsActive:      a.IsActive,
			CreatedAt:     a.CreatedAt,
			UserID:        a.UserID,
			OwnerName:     "Unknown",
			OwnerEmail:    "Unknown",
		}
		if owner, ok := owners[a.UserID]; ok {
			acc.OwnerName = strings.TrimSpace(owner.FirstName + " " + owner.LastName)
			acc.OwnerEmail = owner.Email
		}
		out = append(out, acc)
	}
	return out, nil
}

func (s *Service) Transactions(ctx context.Context, params url.Values) (map[string]any, error) {
	if err := s.verify.VerifyAdmin(ctx); err != nil {
		return nil, err
	}
	var out map[string]any
	err := s.client.Get(ctx, "/admin/transactions", params, false, &out)
	return out, err
}

func (s *Service) Dashboard(ctx context.Context) (map[string]any, error) {
	if err := s.verify.VerifyAdmin(ctx); err != nil {
		return nil, err
	}
	var out map[string]any
	err := s.client.Get(ctx, "/admin/dashboard", nil, true, &out)
	return out, err
}
