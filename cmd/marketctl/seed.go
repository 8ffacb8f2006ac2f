package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sudo-init-do/bazaar/internal/db"
	"github.com/sudo-init-do/bazaar/internal/marketplace"
)

// SeedFile is the reference data loaded by `marketctl seed`.
type SeedFile struct {
	Categories     []string `yaml:"categories"`
	Tags           []string `yaml:"tags"`
	PaymentMethods []struct {
		Name string  `yaml:"name"`
		Icon *string `yaml:"icon"`
	} `yaml:"payment_methods"`
	Offerings []struct {
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
		ExtraCost   string `yaml:"extra_cost"`
	} `yaml:"offerings"`
}

// referenceStore is the slice of marketplace.Store that seeding writes through.
type referenceStore interface {
	Categories(ctx context.Context) ([]marketplace.Category, error)
	CreateCategory(ctx context.Context, name string) (marketplace.Category, error)
	Tags(ctx context.Context) ([]marketplace.Tag, error)
	CreateTag(ctx context.Context, name string) (marketplace.Tag, error)
	CreatePaymentMethod(ctx context.Context, name string, icon *string) (marketplace.PaymentMethod, error)
	CreateOffering(ctx context.Context, o marketplace.Offering) (marketplace.Offering, error)
}

type seedReport struct {
	Categories     int
	Tags           int
	PaymentMethods int
	Offerings      int
}

func seedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load categories, tags, payment methods and offerings from a YAML file",
		Long: `Load reference data. Running it again is safe: existing categories and tags
are skipped and payment methods and offerings are updated by name.

Examples:
  marketctl seed --file seed.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()
			seed, err := parseSeed(f)
			if err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}
			return withPool(cmd.Context(), func(pool *pgxpool.Pool) error {
				if err := db.Migrate(cmd.Context(), pool); err != nil {
					return err
				}
				r, err := applySeed(cmd.Context(), marketplace.NewPgStore(pool), seed)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "seeded %d categories, %d tags, %d payment methods, %d offerings\n",
					r.Categories, r.Tags, r.PaymentMethods, r.Offerings)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "seed.yaml", "path to the seed file")

	return cmd
}

func parseSeed(r io.Reader) (SeedFile, error) {
	var seed SeedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil && err != io.EOF {
		return SeedFile{}, fmt.Errorf("decode seed: %w", err)
	}
	for _, o := range seed.Offerings {
		if strings.TrimSpace(o.Name) == "" {
			return SeedFile{}, fmt.Errorf("offering without a name")
		}
		cost, err := decimal.NewFromString(o.ExtraCost)
		if err != nil {
			return SeedFile{}, fmt.Errorf("offering %q: extra_cost %q is not a number", o.Name, o.ExtraCost)
		}
		if cost.IsNegative() {
			return SeedFile{}, fmt.Errorf("offering %q: extra_cost must not be negative", o.Name)
		}
	}
	return seed, nil
}

func applySeed(ctx context.Context, store referenceStore, seed SeedFile) (seedReport, error) {
	var r seedReport

	categories, err := store.Categories(ctx)
	if err != nil {
		return r, err
	}
	have := make(map[string]bool, len(categories))
	for _, c := range categories {
		have[strings.ToLower(c.Name)] = true
	}
	for _, name := range seed.Categories {
		if have[strings.ToLower(name)] {
			continue
		}
		if _, err := store.CreateCategory(ctx, name); err != nil {
			return r, fmt.Errorf("category %q: %w", name, err)
		}
		have[strings.ToLower(name)] = true
		r.Categories++
	}

	tags, err := store.Tags(ctx)
	if err != nil {
		return r, err
	}
	have = make(map[string]bool, len(tags))
	for _, t := range tags {
		have[strings.ToLower(t.Name)] = true
	}
	for _, name := range seed.Tags {
		if have[strings.ToLower(name)] {
			continue
		}
		if _, err := store.CreateTag(ctx, name); err != nil {
			return r, fmt.Errorf("tag %q: %w", name, err)
		}
		have[strings.ToLower(name)] = true
		r.Tags++
	}

	for _, pm := range seed.PaymentMethods {
		if _, err := store.CreatePaymentMethod(ctx, pm.Name, pm.Icon); err != nil {
			return r, fmt.Errorf("payment method %q: %w", pm.Name, err)
		}
		r.PaymentMethods++
	}

	for _, o := range seed.Offerings {
		// validated by parseSeed
		cost := decimal.RequireFromString(o.ExtraCost)
		if _, err := store.CreateOffering(ctx, marketplace.Offering{Name: o.Name, Description: o.Description, ExtraCost: cost}); err != nil {
			return r, fmt.Errorf("offering %q: %w", o.Name, err)
		}
		r.Offerings++
	}
	return r, nil
}
