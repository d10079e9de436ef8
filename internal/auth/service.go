// Package auth wraps the backend's authentication endpoints and keeps the
// session manager informed of logins and logouts.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/bankdash/bankdash/backend/go-gateway/internal/apiclient"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/models"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/sessions"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/storage"
	"github.com/bankdash/bankdash/backend/go-gateway/pkg/logger"
)

// ErrForbidden is returned by VerifyAdmin when the backend does not report admin rights.
var ErrForbidden = errors.New("admin privileges required")

// CurrentUser is the display copy of the logged-in user. It is not a credential:
// privileged actions ask the backend through VerifyAdmin.
type CurrentUser struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	IsAdmin   bool   `json:"isAdmin"`
}

type loginResponse struct {
	apiclient.TokenPair
	User *models.User `json:"user"`
}

type Service struct {
	client     *apiclient.Client
	sessions   *sessions.Manager
	persistent storage.Store
	page       storage.Store
}

func NewService(client *apiclient.Client, mgr *sessions.Manager, persistent, page storage.Store) *Service {
	return &Service{client: client, sessions: mgr, persistent: persistent, page: page}
}

// Login authenticates with email and password and starts a new session.
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, apiclient.NewValidationError("email", "is required")
	}
	if password == "" {
		return nil, apiclient.NewValidationError("password", "is required")
	}
	deviceID, err := s.DeviceID(ctx)
	if err != nil {
		return nil, err
	}

	var resp loginResponse
	err = s.client.Do(ctx, apiclient.Request{
		Method:          http.MethodPost,
		Path:            "/auth/login",
		Body:            models.LoginRequest{Email: email, Password: password, DeviceID: deviceID},
		Anonymous:       true,
		SkipAuthRefresh: true,
	}, &resp)
	if err != nil {
		if apiclient.IsStatus(err, http.StatusUnauthorized) {
			return nil, apiclient.NewValidationError("", "Invalid email or password")
		}
		return nil, err
	}
	if resp.Access() == "" {
		return nil, &apiclient.MalformedResponseError{Reason: "no authentication token received from server"}
	}
	if resp.Refresh() == "" {
		logger.Warnf("auth: login response carried no refresh token for %s", email)
	}
	if err := s.sessions.Begin(ctx, resp.Access(), resp.Refresh()); err != nil {
		return nil, err
	}
	if resp.User != nil {
		s.storeCurrentUser(ctx, resp.User)
	}
	logger.Infof("auth: login succeeded for %s", email)
	return resp.User, nil
}

// Logout ends the session locally. The backend keeps no server-side logout for this client.
func (s *Service) Logout(ctx context.Context) error {
	return s.sessions.End(ctx)
}

func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (map[string]any, error) {
	if strings.TrimSpace(req.Email) == "" {
		return nil, apiclient.NewValidationError("email", "is required")
	}
	if len(req.Password) < 8 {
		return nil, apiclient.NewValidationError("password", "must be at least 8 characters")
	}
	var out map[string]any
	err := s.client.Do(ctx, apiclient.Request{Method: http.MethodPost, Path: "/auth/register", Body: req, Anonymous: true, SkipAuthRefresh: true}, &out)
	return out, err
}

func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	if strings.TrimSpace(email) == "" {
		return apiclient.NewValidationError("email", "is required")
	}
	return s.client.Do(ctx, apiclient.Request{
		Method: http.MethodPost, Path: "/auth/forgot-password",
		Body: map[string]string{"email": email}, Anonymous: true, SkipAuthRefresh: true,
	}, nil)
}

func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	if token == "" {
		return apiclient.NewValidationError("token", "is required")
	}
	if len(password) < 8 {
		return apiclient.NewValidationError("password", "must be at least 8 characters")
	}
	return s.client.Do(ctx, apiclient.Request{
		Method: http.MethodPost, Path: "/auth/reset-password",
		Body: map[string]string{"token": token, "password": password}, Anonymous: true, SkipAuthRefresh: true,
	}, nil)
}

// GetProfile always asks the backend and refreshes the display copy.
func (s *Service) GetProfile(ctx context.Context) (*models.User, error) {
	var u models.User
	if err := s.client.Get(ctx, "/auth/profile", nil, true, &u); err != nil {
		return nil, err
	}
	s.storeCurrentUser(ctx, &u)
	return &u, nil
}

func (s *Service) UpdateProfile(ctx context.Context, upd models.ProfileUpdate) (*models.User, error) {
	var u models.User
	if err := s.client.Put(ctx, "/auth/profile", upd, &u); err != nil {
		return nil, err
	}
	if u.ID != "" {
		s.storeCurrentUser(ctx, &u)
	}
	return &u, nil
}

// VerifyAdmin re-derives admin rights from the backend profile on every call.
func (s *Service) VerifyAdmin(ctx context.Context) error {
	u, err := s.GetProfile(ctx)
	if err != nil {
		return err
	}
	if !u.Admin() {
		return ErrForbidden
	}
	return nil
}

// CurrentUser returns the display copy, or nil when none is stored or it cannot be read.
func (s *Service) CurrentUser(ctx context.Context) *CurrentUser {
	raw, err := s.page.Get(ctx, storage.KeyUser)
	if err != nil || raw == "" {
		return nil
	}
	var cu CurrentUser
	if err := json.Unmarshal([]byte(raw), &cu); err != nil {
		logger.Warnf("auth: discarding unreadable current user record: %v", err)
		_ = s.page.Delete(ctx, storage.KeyUser)
		return nil
	}
	return &cu
}

func (s *Service) storeCurrentUser(ctx context.Context, u *models.User) {
	b, err := json.Marshal(CurrentUser{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		IsAdmin:   u.Admin(),
	})
	if err != nil {
		return
	}
	if err := s.page.Set(ctx, storage.KeyUser, string(b)); err != nil {
		logger.Warnf("auth: store current user failed: %v", err)
	}
}

// DeviceID returns the persisted device identifier, creating one on first use.
func (s *Service) DeviceID(ctx context.Context) (string, error) {
	id, err := s.persistent.Get(ctx, storage.KeyDeviceID)
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}
	id = uuid.NewString()
	if err := s.persistent.Set(ctx, storage.KeyDeviceID, id); err != nil {
		return "", err
	}
	return id, nil
}
