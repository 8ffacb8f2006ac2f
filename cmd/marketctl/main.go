package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/sudo-init-do/bazaar/internal/config"
	"github.com/sudo-init-do/bazaar/internal/db"
	"github.com/sudo-init-do/bazaar/internal/identity"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:          "marketctl",
		Short:        "Operator tooling for the marketplace backend",
		Version:      Version,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(tokenCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withPool opens the configured database for the duration of fn.
func withPool(ctx context.Context, fn func(*pgxpool.Pool) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	pool, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(pool)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(cmd.Context(), func(pool *pgxpool.Pool) error {
				if err := db.Migrate(cmd.Context(), pool); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
				return nil
			})
		},
	}
}

func tokenCmd() *cobra.Command {
	var (
		sub   string
		email string
		ttl   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development bearer token signed with JWT_SECRET",
		Long: `Mint an HS256 token accepted when AUTH_PROVIDER=jwt.

Examples:
  marketctl token --sub 5f0c... --email buyer@example.com
  marketctl token --sub seller-1 --ttl 1h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Auth.Provider != "jwt" {
				return fmt.Errorf("tokens can only be minted when AUTH_PROVIDER=jwt (got %q)", cfg.Auth.Provider)
			}
			tok, err := identity.Mint(cfg.Auth.JWTSecret, identity.Account{ID: sub, Email: email}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}

	cmd.Flags().StringVar(&sub, "sub", "", "account id placed in the sub claim")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("sub")

	return cmd
}
