// Package accounts serves the account list, account details and statements
// through read-through caches.
package accounts

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bankdash/bankdash/backend/go-gateway/internal/apiclient"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/cache"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/config"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/models"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/sessions"
	"github.com/bankdash/bankdash/backend/go-gateway/pkg/logger"
)

const listKey = "all"

type Service struct {
	client     *apiclient.Client
	ttl        config.CacheConfig
	list       *cache.Cache[[]models.Account]
	details    *cache.Cache[models.Account]
	statements *cache.Cache[[]models.Statement]
}

// NewService builds the service and drops every cached entry whenever the session changes.
func NewService(client *apiclient.Client, mgr *sessions.Manager, ttl config.CacheConfig, opts ...cache.Option) *Service {
	s := &Service{
		client:     client,
		ttl:        ttl,
		list:       cache.New[[]models.Account]("accounts", opts...),
		details:    cache.New[models.Account]("account_details", opts...),
		statements: cache.New[[]models.Statement]("account_statements", opts...),
	}
	mgr.OnChange(func(uint64) { s.Reset() })
	return s
}

// Reset clears all cached account data.
func (s *Service) Reset() {
	s.list.InvalidateAll()
	s.details.InvalidateAll()
	s.statements.InvalidateAll()
}

func (s *Service) List(ctx context.Context, force bool) ([]models.Account, error) {
	return s.list.Read(ctx, listKey, s.ttl.AccountsTTL, func(ctx context.Context) ([]models.Account, error) {
		var raw json.RawMessage
		if err := s.client.Get(ctx, "/accounts", nil, force, &raw); err != nil {
			return nil, err
		}
		return apiclient.DecodeList[models.Account](raw, "accounts", nil)
	}, force)
}

func (s *Service) Get(ctx context.Context, id string, force bool) (models.Account, error) {
	if err := requireID(id); err != nil {
		return models.Account{}, err
	}
	return s.details.Read(ctx, cache.Key(id), s.ttl.AccountDetailsTTL, func(ctx context.Context) (models.Account, error) {
		var raw json.RawMessage
		if err := s.client.Get(ctx, "/accounts/"+url.PathEscape(id), nil, force, &raw); err != nil {
			return models.Account{}, err
		}
		return decodeAccount(raw)
	}, force)
}

func (s *Service) Statements(ctx context.Context, id string, params url.Values, force bool) ([]models.Statement, error) {
	if err := requireID(id); err != nil {
		return nil, err
	}
	params = nonEmpty(params)
	key := cache.Key(id, cache.ParamsKey(params))
	return s.statements.Read(ctx, key, s.ttl.StatementsTTL, func(ctx context.Context) ([]models.Statement, error) {
		var raw json.RawMessage
		if err := s.client.Get(ctx, "/accounts/"+url.PathEscape(id)+"/statements", params, force, &raw); err != nil {
			return nil, err
		}
		return apiclient.DecodeList[models.Statement](raw, "statements", nil)
	}, force)
}

func (s *Service) Open(ctx context.Context, req models.OpenAccountRequest) (map[string]any, error) {
	if strings.TrimSpace(req.AccountType) == "" {
		return nil, apiclient.NewValidationError("account_type", "is required")
	}
	if req.InitialDeposit.IsNegative() {
		return nil, apiclient.NewValidationError("initial_deposit", "must not be negative")
	}
	var out map[string]any
	if err := s.client.Post(ctx, "/accounts", req, &out); err != nil {
		return nil, err
	}
	s.list.InvalidateAll()
	logger.Infof("accounts: opened %s account", req.AccountType)
	return out, nil
}

func (s *Service) Close(ctx context.Context, id string) (map[string]any, error) {
	if err := requireID(id); err != nil {
		return nil, err
	}
	var out map[string]any
	if err := s.client.Do(ctx, apiclient.Request{Method: http.MethodPost, Path: "/accounts/" + url.PathEscape(id) + "/close"}, &out); err != nil {
		return nil, err
	}
	s.invalidateAccount(id)
	logger.Infof("accounts: closed %s", id)
	return out, nil
}

func (s *Service) UpdateSettings(ctx context.Context, id string, settings models.AccountSettings) (map[string]any, error) {
	if err := requireID(id); err != nil {
		return nil, err
	}
	var out map[string]any
	if err := s.client.Put(ctx, "/accounts/"+url.PathEscape(id), settings, &out); err != nil {
		return nil, err
	}
	s.invalidateAccount(id)
	return out, nil
}

// Balance reports the balance of a known account. ok is false when the account
// is not in the list or the list cannot be obtained.
func (s *Service) Balance(ctx context.Context, id string) (balance decimal.Decimal, ok bool) {
	list, err := s.List(ctx, false)
	if err != nil {
		logger.Debugf("accounts: balance lookup for %s skipped: %v", id, err)
		return decimal.Zero, false
	}
	for _, a := range list {
		if a.ID == id {
			return a.Balance, true
		}
	}
	return decimal.Zero, false
}

// InvalidateAccount drops the account's details and the account list.
func (s *Service) InvalidateAccount(id string) { s.invalidateAccount(id) }

func (s *Service) invalidateAccount(id string) {
	s.list.InvalidateAll()
	s.details.Invalidate(cache.Key(id))
}

func decodeAccount(raw json.RawMessage) (models.Account, error) {
	var acc models.Account
	raw = bytes.TrimSpace(raw)
	var env struct {
		Account *models.Account `json:"account"`
	}
	if err := json.Unmarshal(raw, &env); err == nil && env.Account != nil {
		return *env.Account, nil
	}
	if err := json.Unmarshal(raw, &acc); err != nil {
		return acc, &apiclient.MalformedResponseError{Reason: "invalid account payload", Cause: err}
	}
	return acc, nil
}

func requireID(id string) error {
	if strings.TrimSpace(id) == "" {
		return apiclient.NewValidationError("id", "is required")
	}
	return nil
}

// nonEmpty drops parameters without a value, the way query strings were built for the backend.
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
