package commands

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/medkb/medqa-go/internal/logging"
	"github.com/medkb/medqa-go/internal/medrag"
)

// NewChatCmd constructs the `medqa chat` command, an interactive loop that
// answers one question per line until the user quits.
func NewChatCmd() *cobra.Command {
	var topK int
	var threshold float64
	var source string
	var maxContext int

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Ask medical questions interactively",
		Long: `Start an interactive question-answering session. Each line is answered
independently from the indexed knowledge base; there is no conversation
memory. Type "quit", "exit", or "q" to leave, empty lines are skipped.

Examples:
  medqa chat
  medqa chat --top-k 10 --source MedQuAD`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			p, _, closePipeline, err := buildQueryPipeline(ctx, log, topK, threshold, source, maxContext)
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}
			defer closePipeline()

			fmt.Println("medqa interactive session. Type 'quit' to exit.")
			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print("\n> ")
				if !scanner.Scan() {
					break
				}
				question := strings.TrimSpace(scanner.Text())
				switch question {
				case "":
					continue
				case "quit", "exit", "q":
					return nil
				}

				ans, err := p.Ask(ctx, question, topK)
				if err != nil {
					if errors.Is(err, medrag.ErrEmptyIndex) {
						return fmt.Errorf("chat: %w", err)
					}
					fmt.Fprintf(os.Stderr, "error: %v\n", err)
					continue
				}

				fmt.Println(ans.Text)
				printCitations(ans.Citations)
			}
			return scanner.Err()
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", getEnvInt("MEDQA_TOP_K", 5), "Number of records retrieved for context")
	cmd.Flags().Float64Var(&threshold, "threshold", getEnvFloat("MEDQA_THRESHOLD", 0), "Minimum similarity score, 0 = no cutoff")
	cmd.Flags().StringVar(&source, "source", "", "Restrict retrieval to one source name (e.g. MedQuAD)")
	cmd.Flags().IntVar(&maxContext, "max-context", getEnvInt("MEDQA_MAX_CONTEXT_CHARS", 0), "Assembled context budget in characters, 0 = default")

	return cmd
}
