package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/siteqa/internal/model"
	"github.com/sells-group/siteqa/internal/selector"
)

var (
	urlsSite   string
	urlsPreset string
	urlsFetch  bool
)

var urlsCmd = &cobra.Command{
	Use:   "urls [question]",
	Short: "Show the pages that would be fetched for a question",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("urls"); err != nil {
			return err
		}

		base, err := selector.NormalizeBaseURL(urlsSite)
		if err != nil {
			return err
		}
		preset, err := model.ParsePreset(urlsPreset)
		if err != nil {
			return err
		}
		if preset == "" {
			preset = selector.DetectPreset(args[0])
		}

		env, err := initEnv(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		urls := env.Selector.Select(cmd.Context(), args[0], base, preset)
		fmt.Fprintf(os.Stdout, "preset: %s  strategy: %s\n", preset, env.Selector.Strategy())

		if !urlsFetch {
			for _, u := range urls {
				fmt.Fprintln(os.Stdout, u)
			}
			return nil
		}

		results := env.Pages.FetchAll(cmd.Context(), urls, cfg.Fetch.MaxConcurrent, 0)
		for _, r := range results {
			if r.OK() {
				fmt.Fprintf(os.Stdout, "ok    %s -> %s (%d chars, %s)\n", r.URL, r.Page.URL, len(r.Page.Text), r.Page.Source)
				continue
			}
			fmt.Fprintf(os.Stdout, "fail  %s: %v\n", r.URL, r.Err)
		}
		return nil
	},
}

func init() {
	urlsCmd.Flags().StringVar(&urlsSite, "site", "", "website base URL (required)")
	urlsCmd.Flags().StringVar(&urlsPreset, "preset", "", "preset: core, cx or ex (default: detected)")
	urlsCmd.Flags().BoolVar(&urlsFetch, "fetch", false, "also fetch each page and report the outcome")
	_ = urlsCmd.MarkFlagRequired("site")
	rootCmd.AddCommand(urlsCmd)
}
