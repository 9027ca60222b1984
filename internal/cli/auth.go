package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Sternrassler/canvas-api-client/pkg/model"
	"github.com/Sternrassler/canvas-api-client/pkg/session"
	"github.com/spf13/cobra"
)

func loginCmd(a *app) *cobra.Command {
	var domain, token, protocol string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store Canvas credentials and verify them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			if domain != "" {
				if err := a.session.SetDomain(ctx, domain); err != nil {
					return err
				}
			}
			if protocol != "" {
				if err := a.session.SetProtocol(ctx, protocol); err != nil {
					return err
				}
			}
			if token != "" {
				if err := a.session.SetToken(ctx, token); err != nil {
					return err
				}
			}

			user, err := a.client.Self(ctx)
			if err != nil {
				return fmt.Errorf("verify credentials: %w", err)
			}

			fullDomain, err := a.session.FullDomain(ctx)
			if err != nil {
				return err
			}
			a.logger.Info().Int64("user_id", user.ID).Msg("Logged in")
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in to %s as %s (id %d)\n", fullDomain, user.Name, user.ID)

			if !a.persistent() {
				a.logger.Warn().Msg("REDIS_URL is not set, the session ends with this process")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&domain, "domain", "", "Canvas domain, e.g. canvas.example.edu")
	cmd.Flags().StringVar(&token, "token", "", "Canvas access token")
	cmd.Flags().StringVar(&protocol, "protocol", "", "https or http")
	return cmd
}

func logoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear stored credentials and cached responses",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			if err := a.session.Clear(ctx); err != nil {
				return fmt.Errorf("clear session: %w", err)
			}

			cleared := 0
			if c := a.client.GetCache(); c != nil {
				n, err := c.Clear(ctx)
				if err != nil {
					return fmt.Errorf("clear cache: %w", err)
				}
				cleared = n
			}

			a.logger.Info().Int("cached_responses", cleared).Msg("Logged out")
			fmt.Fprintf(cmd.OutOrStdout(), "Logged out, %d cached responses cleared\n", cleared)
			return nil
		},
	}
}

func whoamiCmd(a *app) *cobra.Command {
	var cached, asJSON bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the acting Canvas user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			actor := session.NormalUser
			if a.cfg.Masquerading() {
				actor = session.MasqueradedUser
			}

			var (
				user *model.User
				err  error
			)
			if cached {
				user, err = a.session.CachedUser(ctx, actor)
				if errors.Is(err, session.ErrNoUser) {
					return fmt.Errorf("no cached %s, run canvas login first", actor)
				}
			} else {
				user, err = a.client.Self(ctx)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(user)
			}

			fmt.Fprintf(out, "%s (id %d)\n", user.Name, user.ID)
			if user.LoginID != "" {
				fmt.Fprintf(out, "login: %s\n", user.LoginID)
			}
			if user.Email != "" {
				fmt.Fprintf(out, "email: %s\n", user.Email)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&cached, "cached", false, "read the user stored at login instead of asking Canvas")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the user as JSON")
	return cmd
}
