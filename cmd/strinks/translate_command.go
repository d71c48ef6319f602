package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newTranslateCommand(ctx *commandContext) *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "translate <text>",
		Short: "Translate and romanize text the way the matcher does",
		Long: `Translate and romanize text the way the matcher does.

The override dictionary is consulted first, then the translation cache, then
DeepL when deepl.api_key is set. Failures fall back to the original text.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			text := strings.Join(args, " ")
			rt, err := ctx.newRuntime()
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := rt.Close(); closeErr != nil && err == nil {
					err = closeErr
				}
			}()
			if err := rt.openTranslator(cmd.Context()); err != nil {
				return err
			}

			translated := rt.translator.Translate(cmd.Context(), text, from, to)
			romanized := rt.translator.Romanize(text)
			if ctx.JSONMode() {
				return writeJSON(cmd, map[string]any{
					"text":       text,
					"translated": translated,
					"romanized":  romanized,
					"japanese":   rt.translator.HasJapanese(text),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Form", "Text"},
				[][]string{
					{"original", text},
					{"translated", translated},
					{"romanized", romanized},
				},
				nil,
			))
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "ja", "Source language")
	cmd.Flags().StringVar(&to, "to", "en", "Target language")
	return cmd
}
