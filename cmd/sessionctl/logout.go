package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/bankdash/bankdash/backend/go-gateway/internal/app"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/sessions"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/storage"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/tokens"
)

func logoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "End the stored session and revoke its tokens",
		Long: `Revokes the stored access and refresh tokens and clears them from the
persistent store. Gateways on a store with a change feed (redis, mongo)
see the logout, bump their session generation and drop their cached data.
A refresh still in flight in such a gateway is discarded.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			b, err := openBackends(ctx)
			if err != nil {
				return err
			}
			defer b.Close()
			forgetDevice, _ := cmd.Flags().GetBool("forget-device")
			return forceLogout(ctx, cmd.OutOrStdout(), b, forgetDevice)
		},
	}
	cmd.Flags().Bool("forget-device", false, "Also delete the stored device id")
	return cmd
}

func forceLogout(ctx context.Context, w io.Writer, b *app.Backends, forgetDevice bool) error {
	mgr := sessions.NewManager(tokens.NewStore(b.Persistent, storage.NewMemoryStore()), storage.NewMemoryStore(), b.Revocations, sessions.Options{})
	if mgr.Tokens().Get(ctx, tokens.Access) == "" && mgr.Tokens().Get(ctx, tokens.Refresh) == "" {
		fmt.Fprintln(w, "no session stored")
	} else {
		if err := mgr.End(ctx); err != nil {
			return fmt.Errorf("end session: %w", err)
		}
		fmt.Fprintln(w, "session ended, tokens revoked")
	}
	if forgetDevice {
		if err := b.Persistent.Delete(ctx, storage.KeyDeviceID); err != nil {
			return fmt.Errorf("delete device id: %w", err)
		}
		fmt.Fprintln(w, "device id removed")
	}
	return nil
}
