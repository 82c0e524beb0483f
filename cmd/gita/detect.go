package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/theimaginaryfoundation/gita-moods/scripture/provider"
)

func (a *app) detectCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "detect <how you feel>",
		Short: "Pick the closest catalog mood for a description of how you feel, then show its verses",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.APIKey == "" {
				err := errors.New("missing OPENAI_API_KEY (or pass --api-key)")
				fmt.Fprintln(a.stderr, err.Error())
				return configError{err}
			}
			cat, err := a.catalog.Load(cmd.Context())
			if err != nil {
				return err
			}

			client := openai.NewClient(option.WithAPIKey(a.cfg.APIKey))
			classifier := provider.MoodClassifier{Client: &client, Model: a.cfg.Model}
			feeling := strings.Join(args, " ")
			mood, choice, err := classifier.Classify(cmd.Context(), feeling, cat)
			if err != nil {
				a.logger.Warn("mood detection failed", zap.Error(err))
				return err
			}
			a.logger.Info("mood detected", zap.String("mood", mood.Name), zap.String("reason", choice.Reason))

			res := a.resolver.FetchVersesForEntry(cmd.Context(), mood)
			if asJSON {
				return writeJSON(a.stdout, newMoodBundle(feeling, res))
			}
			fmt.Fprintf(a.stdout, "%s: %s\n", mood.Name, choice.Reason)
			fmt.Fprintln(a.stdout)
			for _, v := range res.Verses {
				printVerse(a.stdout, v, a.cfg.PrimaryCommentator)
			}
			a.reportFailures(res.Failures)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}
