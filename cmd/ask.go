package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/siteqa/internal/model"
)

var (
	askSite   string
	askPreset string
	askModel  string
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer one question about a website and print the JSON response",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("ask"); err != nil {
			return err
		}

		env, err := initEnv(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		resp, err := env.Answer.Ask(cmd.Context(), model.Request{
			Question:    args[0],
			SiteBaseURL: askSite,
			Preset:      askPreset,
			Model:       askModel,
		})
		if err != nil {
			return eris.Wrap(err, "ask")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	},
}

func init() {
	askCmd.Flags().StringVar(&askSite, "site", "", "website base URL (required)")
	askCmd.Flags().StringVar(&askPreset, "preset", "", "preset: core, cx or ex (default: detected)")
	askCmd.Flags().StringVar(&askModel, "model", "", "model ID (default from config)")
	_ = askCmd.MarkFlagRequired("site")
	rootCmd.AddCommand(askCmd)
}
