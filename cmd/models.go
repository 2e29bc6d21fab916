package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/siteqa/internal/llm"
	"github.com/sells-group/siteqa/pkg/gemini"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List Gemini models that support generateContent and the one discovery would pick",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("models"); err != nil {
			return err
		}

		client := gemini.NewClient(cfg.Gemini.Key, gemini.WithBaseURL(cfg.Gemini.BaseURL))
		models, err := client.ListModels(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "list models")
		}

		for _, m := range models {
			if m.SupportsGenerate() {
				fmt.Fprintf(os.Stdout, "%-40s %s\n", m.ID(), m.DisplayName)
			}
		}

		preferred := cfg.Gemini.PreferredModels
		if len(preferred) == 0 {
			preferred = llm.DefaultPreferredModels
		}
		if picked, ok := llm.PickModel(models, preferred); ok {
			fmt.Fprintf(os.Stdout, "\ndiscovery would pick: %s (configured: %s)\n", picked, cfg.Gemini.Model)
		} else {
			fmt.Fprintln(os.Stdout, "\nno model supports generateContent")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
