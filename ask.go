package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anatolykoptev/go_vidqa/internal/engine"
	"github.com/anatolykoptev/go_vidqa/internal/toolutil"
)

func newAskCommand() *cobra.Command {
	var (
		in      engine.AskInput
		verbose bool
	)

	cmd := &cobra.Command{
		Use:     "ask",
		Short:   "Answer one question about a video and exit",
		Example: `  go_vidqa ask --url https://www.youtube.com/watch?v=dQw4w9WgXcQ --question "What is the song about?"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := toolutil.NormalizeAskInput(in)
			if err != nil {
				return err
			}
			c, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := buildApp(c)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.pipeline.Ask(cmd.Context(), input.VideoURL, input.Question)
			if err != nil {
				_, msg := toolutil.Describe(err)
				return fmt.Errorf("%s (%w)", msg, err)
			}

			out := cmd.OutOrStdout()
			if !verbose {
				fmt.Fprintln(out, res.Answer)
				return nil
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().StringVar(&in.VideoURL, "url", "", "YouTube video URL")
	cmd.Flags().StringVar(&in.Question, "question", "", "Question about the video")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print retrieved passages and scores as JSON")
	return cmd
}
