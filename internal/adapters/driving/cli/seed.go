package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/support-rag/internal/core/domain"
	"github.com/custodia-labs/support-rag/internal/seed"
)

var seedCategories []string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the sample support documents",
	Long: `Uploads the bundled sample corpus (phone, fibre, broadband and email
articles) through the normal upload path. Documents that already exist are
skipped, so running seed twice is harmless.`,
	Args: cobra.NoArgs,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringSliceVar(&seedCategories, "category", nil, "only seed these categories (repeatable)")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, _ []string) error {
	categories := make([]domain.Category, 0, len(seedCategories))
	for _, s := range seedCategories {
		c, err := domain.ParseCategory(s)
		if err != nil {
			return err
		}
		categories = append(categories, c)
	}

	docs, err := seed.Documents(categories...)
	if err != nil {
		return err
	}

	a, err := appFactory(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	seeder := seed.NewSeeder(seed.Config{Documents: a.Documents, Logger: a.Logger})
	result, err := seeder.Seed(cmd.Context(), docs)
	if result != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d documents (%d chunks), skipped %d, failed %d\n",
			result.Loaded, result.Chunks, result.Skipped, result.Failed)
	}
	if err != nil {
		return fmt.Errorf("seed failed: %w", err)
	}
	return nil
}
