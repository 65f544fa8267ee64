package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"mrilo/internal/domain"
	"mrilo/internal/language"
)

var langCmd = &cobra.Command{
	Use:   "lang",
	Short: "Language detection and preferences",
}

var langDetectCmd = &cobra.Command{
	Use:   "detect <text>",
	Short: "Detect the language of a piece of text",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		w := cmd.OutOrStdout()
		fmt.Fprintln(w, titleStyle.Render(language.Detect(text)))
		if language.HasMultipleLanguages(text) {
			fmt.Fprintln(w, metaStyle.Render("multiple languages detected"))
		}
		return nil
	},
}

var langListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the languages replies can be written in",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range language.SupportedLanguages() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

var langShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the reply language stored for your account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !app.client.HasToken() {
			return &domain.UnauthorizedError{Message: "sign in with --token to read preferences"}
		}
		lang, err := app.client.GetLanguage(ctxOf(cmd))
		if err != nil {
			return err
		}
		if lang == "" {
			fmt.Fprintln(cmd.OutOrStdout(), metaStyle.Render("No language preference; replies follow your messages."))
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), titleStyle.Render(lang))
		return nil
	},
}

func init() {
	langCmd.AddCommand(langDetectCmd, langListCmd, langShowCmd)
	rootCmd.AddCommand(langCmd)
}
