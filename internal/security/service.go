// Package security manages the user's security settings, two-factor
// authentication and password changes.
package security

import (
	"context"
	"net/http"
	"strings"

	"github.com/bankdash/bankdash/backend/go-gateway/internal/apiclient"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/models"
	"github.com/bankdash/bankdash/backend/go-gateway/pkg/logger"
)

type PasswordChange struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type Service struct {
	client *apiclient.Client
}

func NewService(client *apiclient.Client) *Service {
	return &Service{client: client}
}

func (s *Service) Settings(ctx context.Context) (models.SecuritySettings, error) {
	var out models.SecuritySettings
	err := s.client.Get(ctx, "/security/settings", nil, true, &out)
	return out, err
}

func (s *Service) UpdateSettings(ctx context.Context, settings models.SecuritySettings) (map[string]any, error) {
	if settings.SessionTimeoutMins < 0 {
		return nil, apiclient.NewValidationError("session_timeout_minutes", "must not be negative")
	}
	var out map[string]any
	err := s.client.Put(ctx, "/security/settings", settings, &out)
	return out, err
}

// EnableTwoFactor starts enrollment. The response carries the secret or QR code to verify.
func (s *Service) EnableTwoFactor(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := s.client.Post(ctx, "/security/two-factor/enable", nil, &out)
	return out, err
}

func (s *Service) VerifyTwoFactor(ctx context.Context, code string) (map[string]any, error) {
	return s.postCode(ctx, "/security/two-factor/verify", code)
}

func (s *Service) DisableTwoFactor(ctx context.Context, code string) (map[string]any, error) {
	return s.postCode(ctx, "/security/two-factor/disable", code)
}

func (s *Service) postCode(ctx context.Context, path, code string) (map[string]any, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apiclient.NewValidationError("code", "is required")
	}
	var out map[string]any
	err := s.client.Post(ctx, path, map[string]string{"code": code}, &out)
	return out, err
}

func (s *Service) ChangePassword(ctx context.Context, change PasswordChange) (map[string]any, error) {
	if change.CurrentPassword == "" {
		return nil, apiclient.NewValidationError("currentPassword", "is required")
	}
	if len(change.NewPassword) < 8 {
		return nil, apiclient.NewValidationError("newPassword", "must be at least 8 characters")
	}
	if change.NewPassword == change.CurrentPassword {
		return nil, apiclient.NewValidationError("newPassword", "must differ from the current password")
	}
	var out map[string]any
	err := s.client.Do(ctx, apiclient.Request{
		Method: http.MethodPut,
		Path:   "/security/password/update",
		Body: map[string]string{
			"current_password": change.CurrentPassword,
			"new_password":     change.NewPassword,
		},
	}, &out)
	if err == nil {
		logger.Info("security: password changed")
	}
	return out, err
}
