// Package commands defines all Cobra CLI commands for the medqa binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/medkb/medqa-go/internal/audit"
	"github.com/medkb/medqa-go/internal/config"
	"github.com/medkb/medqa-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "medqa",
		Short: "medqa answers medical questions grounded in an indexed knowledge base",
		Long: `medqa is a local-first question-answering pipeline for medical reference
content. It ingests Q&A corpora (MedQuAD) and encyclopedia articles
(MedlinePlus) into a Qdrant vector index, then answers natural language
questions with citations, grounded strictly in the retrieved records.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.medqa/config.yaml).
See 'medqa --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.medqa/config.yaml)")

	root.AddCommand(
		NewAskCmd(),
		NewChatCmd(),
		NewIngestCmd(),
		NewStatusCmd(),
		NewServeCmd(),
		NewVersionCmd(),
	)

	return root
}
