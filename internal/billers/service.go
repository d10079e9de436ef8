// Package billers manages the biller directory and the user's saved billers.
package billers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/bankdash/bankdash/backend/go-gateway/internal/apiclient"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/cache"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/config"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/models"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/sessions"
)

const listKey = "all"

type Service struct {
	client *apiclient.Client
	ttl    config.CacheConfig
	all    *cache.Cache[[]models.Biller]
	saved  *cache.Cache[[]models.SavedBiller]
}

func NewService(client *apiclient.Client, mgr *sessions.Manager, ttl config.CacheConfig, opts ...cache.Option) *Service {
	s := &Service{
		client: client,
		ttl:    ttl,
		all:    cache.New[[]models.Biller]("billers", opts...),
		saved:  cache.New[[]models.SavedBiller]("saved_billers", opts...),
	}
	mgr.OnChange(func(uint64) { s.Reset() })
	return s
}

func (s *Service) Reset() {
	s.all.InvalidateAll()
	s.saved.InvalidateAll()
}

// List returns the biller directory. The backend has answered with a bare array,
// a {billers: [...]} envelope, a single biller, or nothing at all.
func (s *Service) List(ctx context.Context, force bool) ([]models.Biller, error) {
	return s.all.Read(ctx, listKey, s.ttl.BillersTTL, func(ctx context.Context) ([]models.Biller, error) {
		var raw json.RawMessage
		if err := s.client.Get(ctx, "/billers", nil, force, &raw); err != nil {
			return nil, err
		}
		return apiclient.DecodeList[models.Biller](raw, "billers", apiclient.HasFields("id", "name"))
	}, force)
}

func (s *Service) Saved(ctx context.Context, force bool) ([]models.SavedBiller, error) {
	return s.saved.Read(ctx, listKey, s.ttl.SavedBillersTTL, func(ctx context.Context) ([]models.SavedBiller, error) {
		var raw json.RawMessage
		if err := s.client.Get(ctx, "/billers/saved", nil, force, &raw); err != nil {
			return nil, err
		}
		return apiclient.DecodeList[models.SavedBiller](raw, "billers", func(obj map[string]json.RawMessage) bool {
			return apiclient.HasFields("id", "biller_id")(obj) || apiclient.HasFields("id", "account_number")(obj)
		})
	}, force)
}

func (s *Service) Add(ctx context.Context, b models.Biller) (map[string]any, error) {
	if strings.TrimSpace(b.Name) == "" {
		return nil, apiclient.NewValidationError("name", "is required")
	}
	var out map[string]any
	if err := s.client.Post(ctx, "/billers", b, &out); err != nil {
		return nil, err
	}
	s.all.InvalidateAll()
	return out, nil
}

func (s *Service) Save(ctx context.Context, b models.SavedBiller) (map[string]any, error) {
	if strings.TrimSpace(b.BillerID) == "" {
		return nil, apiclient.NewValidationError("biller_id", "is required")
	}
	var out map[string]any
	if err := s.client.Post(ctx, "/billers/saved", b, &out); err != nil {
		return nil, err
	}
	s.saved.InvalidateAll()
	return out, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return apiclient.NewValidationError("id", "is required")
	}
	if err := s.client.Delete(ctx, "/billers/saved/"+url.PathEscape(id), nil); err != nil {
		return err
	}
	s.saved.InvalidateAll()
	return nil
}

func (s *Service) SetFavorite(ctx context.Context, id string, favorite bool) (map[string]any, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apiclient.NewValidationError("id", "is required")
	}
	var out map[string]any
	err := s.client.Do(ctx, apiclient.Request{
		Method: http.MethodPut,
		Path:   "/billers/saved/" + url.PathEscape(id) + "/favorite",
		Body:   map[string]bool{"is_favorite": favorite},
	}, &out)
	if err != nil {
		return nil, err
	}
	s.saved.InvalidateAll()
	return out, nil
}
