package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/medkb/medqa-go/internal/logging"
)

// NewAskCmd constructs the `medqa ask` command, which answers a single
// natural language question from the indexed knowledge base.
func NewAskCmd() *cobra.Command {
	var topK int
	var threshold float64
	var source string
	var maxContext int

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a single medical question",
		Long: `Answer a natural language medical question, grounded in the indexed
knowledge base. The answer is followed by numbered citations naming the
records it was grounded in. When no relevant records are found the command
says so instead of guessing.

Examples:
  medqa ask "what are the symptoms of glaucoma?"
  medqa ask --top-k 10 "how is type 2 diabetes treated?"
  medqa ask --source MedQuAD "what causes high blood pressure?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			p, _, closePipeline, err := buildQueryPipeline(ctx, log, topK, threshold, source, maxContext)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer closePipeline()

			ans, err := p.Ask(ctx, args[0], topK)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			fmt.Println(ans.Text)
			printCitations(ans.Citations)
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", getEnvInt("MEDQA_TOP_K", 5), "Number of records retrieved for context")
	cmd.Flags().Float64Var(&threshold, "threshold", getEnvFloat("MEDQA_THRESHOLD", 0), "Minimum similarity score, 0 = no cutoff")
	cmd.Flags().StringVar(&source, "source", "", "Restrict retrieval to one source name (e.g. MedQuAD)")
	cmd.Flags().IntVar(&maxContext, "max-context", getEnvInt("MEDQA_MAX_CONTEXT_CHARS", 0), "Assembled context budget in characters, 0 = default")

	return cmd
}
