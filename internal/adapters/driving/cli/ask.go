package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/support-rag/internal/core/domain"
)

var (
	askCategory string
	askLimit    int
	askJSON     bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer one support question",
	Long: `Retrieves the closest documentation chunks within one category and
asks the language model to answer from them. Prints the answer, its
confidence and the sources it was grounded in.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askCategory, "category", "C", "", "category to search (phone, fibre, broadband, email)")
	askCmd.Flags().IntVarP(&askLimit, "limit", "n", 0, "maximum candidate chunks (0 uses the configured default)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the answer as JSON")
	_ = askCmd.MarkFlagRequired("category")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	category, err := domain.ParseCategory(askCategory)
	if err != nil {
		return err
	}

	a, err := appFactory(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	answer, err := a.Search.Answer(cmd.Context(), "cli", domain.QueryRequest{
		Query:    args[0],
		Category: category,
		Limit:    askLimit,
	})
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if askJSON {
		return outputAnswerJSON(cmd, answer)
	}
	outputAnswerText(cmd, answer)
	return nil
}

func outputAnswerJSON(cmd *cobra.Command, answer *domain.Answer) error {
	out := cmd.OutOrStdout()
	data, err := json.MarshalIndent(answer, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal answer: %w", err)
	}
	fmt.Fprintln(out, string(data))
	return nil
}

func outputAnswerText(cmd *cobra.Command, answer *domain.Answer) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, answer.Response)
	fmt.Fprintln(out)
	if answer.Degraded {
		fmt.Fprintln(out, "(the language model was unavailable; showing retrieved context)")
	}
	fmt.Fprintf(out, "Confidence: %s (%.2f)\n", answer.ConfidenceLabel, answer.Confidence)

	if len(answer.Sources) == 0 {
		return
	}
	fmt.Fprintln(out, "Sources:")
	for i, src := range answer.Sources {
		fmt.Fprintf(out, "  [%d] %s (distance %.3f)\n", i+1, src.Label, src.Distance)
	}
}
