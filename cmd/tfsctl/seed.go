package main

import (
	"fmt"
	"os"

	"tfsrentals/internal/bootstrap"
	"tfsrentals/internal/seed"

	"github.com/spf13/cobra"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load categories, products and kit templates",
	Long: `Load a catalog YAML file into the database. Without --file the bundled
catalog is used. Every record is upserted by slug, so seeding can be repeated.`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "catalog YAML file")
}

func runSeed(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	var (
		cat seed.Catalog
		err error
	)
	if seedFile == "" {
		cat, err = seed.Default()
	} else {
		f, ferr := os.Open(seedFile)
		if ferr != nil {
			return ferr
		}
		defer f.Close()
		cat, err = seed.Parse(f)
	}
	if err != nil {
		return fmt.Errorf("parse catalog: %w", err)
	}

	db, deps, done, err := env(ctx)
	if err != nil {
		return err
	}
	defer done()

	sum, err := bootstrap.Seeder(db, deps).Apply(ctx, cat)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "categories=%d products=%d kits=%d\n", sum.Categories, sum.Products, sum.Kits)
	return nil
}
