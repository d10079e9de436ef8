package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bankdash/bankdash/backend/go-gateway/internal/storage"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/tokens"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored tokens and device id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			b, err := openBackends(ctx)
			if err != nil {
				return err
			}
			defer b.Close()
			return printStatus(ctx, cmd.OutOrStdout(), b.Persistent, time.Now())
		},
	}
}

func printStatus(ctx context.Context, w io.Writer, st storage.Store, now time.Time) error {
	access, err := st.Get(ctx, storage.KeyAccessToken)
	if err != nil {
		return fmt.Errorf("read access token: %w", err)
	}
	refresh, err := st.Get(ctx, storage.KeyRefreshToken)
	if err != nil {
		return fmt.Errorf("read refresh token: %w", err)
	}
	device, err := st.Get(ctx, storage.KeyDeviceID)
	if err != nil {
		return fmt.Errorf("read device id: %w", err)
	}

	fmt.Fprintln(w, "Session")
	fmt.Fprintln(w, strings.Repeat("=", 40))
	fmt.Fprintf(w, "  Device:    %s\n", valueOrDefault(device, "not assigned"))
	fmt.Fprintf(w, "  Access:    %s\n", describeToken(access, now))
	fmt.Fprintf(w, "  Refresh:   %s\n", describeToken(refresh, now))

	switch {
	case access == "":
		fmt.Fprintln(w, "  State:     anonymous")
	case refresh == "":
		fmt.Fprintln(w, "  State:     degraded (no refresh token)")
	default:
		fmt.Fprintln(w, "  State:     healthy")
	}
	return nil
}

func describeToken(raw string, now time.Time) string {
	if raw == "" {
		return "absent"
	}
	c, err := tokens.ParseClaims(raw)
	if err != nil {
		return tokens.Fingerprint(raw) + " (opaque)"
	}
	parts := []string{tokens.Fingerprint(raw)}
	if c.Subject != "" {
		parts = append(parts, "sub="+c.Subject)
	}
	switch {
	case c.ExpiresAt.IsZero():
		parts = append(parts, "no expiry")
	case c.Expired(now):
		parts = append(parts, "expired "+c.ExpiresAt.UTC().Format(time.RFC3339))
	default:
		parts = append(parts, "expires in "+c.ExpiresAt.Sub(now).Truncate(time.Second).String())
	}
	return strings.Join(parts, " ")
}

func valueOrDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
