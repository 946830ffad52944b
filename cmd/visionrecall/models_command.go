package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"visionrecall/internal/config"
	"visionrecall/internal/services/llm"
)

func newModelsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List models offered by the configured LLM endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			settings := cfg.GetLLM()
			client := llm.NewClient(llm.Config{
				Provider:       settings.Provider,
				APIKey:         settings.APIKey,
				BaseURL:        settings.BaseURL,
				Referer:        settings.Referer,
				Title:          settings.Title,
				TimeoutSeconds: settings.TimeoutSeconds,
			})
			models, err := client.ListModels(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.JSONMode() {
				if models == nil {
					models = []string{}
				}
				return writeJSON(cmd, models)
			}
			out := cmd.OutOrStdout()
			if len(models) == 0 {
				fmt.Fprintln(out, "No models reported")
				return nil
			}
			rows := make([][]string, 0, len(models))
			for _, model := range models {
				rows = append(rows, []string{model, modelRole(model, settings)})
			}
			fmt.Fprint(out, renderTable([]string{"Model", "Configured as"}, rows, nil))
			return nil
		},
	}
}

func modelRole(model string, settings config.LLMConfig) string {
	var roles []string
	if model == settings.VisionModel {
		roles = append(roles, "vision")
	}
	if model == settings.NotesModel {
		roles = append(roles, "notes")
	}
	return strings.Join(roles, ", ")
}
