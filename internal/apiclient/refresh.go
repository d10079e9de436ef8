package apiclient

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/bankdash/bankdash/backend/go-gateway/internal/sessions"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/tokens"
	"github.com/bankdash/bankdash/backend/go-gateway/pkg/logger"
	"github.com/bankdash/bankdash/backend/go-gateway/pkg/metrics"
)

// TokenPair accepts both naming styles the backend has used.
type TokenPair struct {
	Token             string `json:"token,omitempty"`
	AccessToken       string `json:"access_token,omitempty"`
	RefreshToken      string `json:"refreshToken,omitempty"`
	RefreshTokenSnake string `json:"refresh_token,omitempty"`
}

func (p TokenPair) Access() string {
	if p.Token != "" {
		return p.Token
	}
	return p.AccessToken
}

func (p TokenPair) Refresh() string {
	if p.RefreshToken != "" {
		return p.RefreshToken
	}
	return p.RefreshTokenSnake
}

// refresh obtains a new access token. Concurrent callers share one backend call.
// rejected is the access token that got the 401; when the stored token already
// differs, another caller refreshed in the meantime and no call is made.
func (c *Client) refresh(ctx context.Context, rejected string) (string, error) {
	gen := c.sessions.Generation()
	v, err, shared := c.refreshes.Do("refresh:"+strconv.FormatUint(gen, 10), func() (any, error) {
		ts := c.sessions.Tokens()
		if cur := ts.Get(ctx, tokens.Access); cur != "" && cur != rejected {
			return cur, nil
		}
		rt := ts.Get(ctx, tokens.Refresh)
		if rt == "" {
			return "", ErrNoRefreshToken
		}
		// one caller's cancellation must not fail every waiter
		fctx := context.WithoutCancel(ctx)
		var pair TokenPair
		err := c.do(fctx, Request{
			Method:          http.MethodPost,
			Path:            c.opts.RefreshPath,
			Body:            map[string]string{"refreshToken": rt},
			Anonymous:       true,
			SkipAuthRefresh: true,
		}, &pair, true)
		if err != nil {
			return "", err
		}
		if pair.Access() == "" {
			return "", &MalformedResponseError{Reason: "refresh response without access token"}
		}
		if err := c.sessions.ApplyRefresh(fctx, gen, rt, pair.Access(), pair.Refresh()); err != nil {
			if errors.Is(err, sessions.ErrSessionChanged) {
				metrics.TokenRefreshes.WithLabelValues("discarded").Inc()
				logger.Infof("apiclient: discarding refresh result for generation %d", gen)
			}
			return "", err
		}
		metrics.TokenRefreshes.WithLabelValues("success").Inc()
		logger.Infof("apiclient: access token refreshed (%s)", tokens.Fingerprint(pair.Access()))
		return pair.Access(), nil
	})
	if err != nil {
		return "", err
	}
	if shared {
		logger.Debugf("apiclient: joined in-flight refresh")
	}
	return v.(string), nil
}
