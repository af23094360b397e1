package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lattice-agent/internal/token"

	"github.com/spf13/cobra"
)

// NewTokenCommand creates the token command group.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue and inspect command tokens",
	}
	cmd.AddCommand(newTokenIssueCommand(rootOpts))
	cmd.AddCommand(newTokenVerifyCommand(rootOpts))
	return cmd
}

func newTokenIssueCommand(rootOpts *RootOptions) *cobra.Command {
	var day string
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue an unbound token for today or --day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := offlineManager(rootOpts, cmd)
			if err != nil {
				return err
			}
			if day == "" {
				day = mgr.Today()
			}
			issued, err := mgr.IssueForDay(day)
			if errors.Is(err, token.ErrNotConfigured) {
				return fmt.Errorf("%w: set TOKEN_GATING_ENABLED=true and TOKEN_SECRET", err)
			}
			if err != nil {
				return err
			}
			if rootOpts.LogFormat == "json" {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(issued)
			}
			fmt.Fprintln(cmd.OutOrStdout(), issued.Token)
			fmt.Fprintf(cmd.ErrOrStderr(), "valid for %s until %s\n", issued.Day, issued.ExpiresAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&day, "day", "", "token day (yyyyMMdd)")
	return cmd
}

func newTokenVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <token>",
		Short: "Check a token's shape, signature and day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := offlineManager(rootOpts, cmd)
			if err != nil {
				return err
			}
			p, err := mgr.Validate(args[0])
			if err != nil {
				if code := token.Code(err); code != "" {
					return fmt.Errorf("%s: %w", code, err)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "valid token %s for %s\n", p.ID, p.Day)
			return nil
		},
	}
}

// offlineManager builds a manager without a grant store. It can issue and
// validate but never binds.
func offlineManager(rootOpts *RootOptions, cmd *cobra.Command) (*token.Manager, error) {
	cfg, logger, err := loadConfig(rootOpts, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Token.Location()
	if err != nil {
		return nil, err
	}
	return token.NewManager(token.Config{
		Enabled:   cfg.Token.Enabled,
		Secret:    cfg.Token.Secret,
		Namespace: cfg.Token.Namespace,
		ServerID:  cfg.App.ServerID,
		Location:  loc,
		Logger:    logger,
	}, nil, nil), nil
}
