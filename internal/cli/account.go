package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"mrilo/internal/domain"
	"mrilo/internal/domain/models"
	"mrilo/internal/service/history"
)

var (
	loginEmail string
	loginName  string
	loginID    string
	loginToken string

	logoutForget bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in so chats are kept for your account",
	Long: `Sign in as a user. History is stored locally per email address.

Pass --token with a Supabase access token to mirror chats to the server
and use the account endpoints.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		email := strings.TrimSpace(loginEmail)
		if email == "" {
			return &domain.ValidationError{Message: "--email is required"}
		}
		name := loginName
		if name == "" {
			name = strings.SplitN(email, "@", 2)[0]
		}

		ctx := ctxOf(cmd)
		user := &models.User{ID: loginID, Name: name, Email: email}
		if err := history.SaveUser(ctx, app.storage, user); err != nil {
			return fmt.Errorf("failed to save user: %w", err)
		}
		if loginToken != "" {
			if err := app.storage.Set(ctx, KeyAuthToken, loginToken); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}
		}
		app.store.SetUser(ctx, user)

		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", successStyle.Render("Signed in as"), titleStyle.Render(email))
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out; local history is kept for the next login",
	Long: `Sign out. Local history is kept for the next login unless --forget
is given, which removes the chat history of every account on this machine.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := ctxOf(cmd)
		if err := history.ClearUser(ctx, app.storage); err != nil {
			return err
		}
		if err := app.storage.Remove(ctx, KeyAuthToken); err != nil {
			return err
		}
		app.store.SetUser(ctx, nil)
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Signed out"))

		if logoutForget {
			removed, err := history.ForgetHistories(ctx, app.storage)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d local chat histories\n", removed)
		}
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		user := app.store.User()
		if user == nil {
			fmt.Fprintln(w, metaStyle.Render("Not signed in."))
			return nil
		}
		fmt.Fprintf(w, "%s <%s>\n", titleStyle.Render(user.Name), user.Email)
		if app.client.HasToken() {
			fmt.Fprintln(w, metaStyle.Render("Server sync enabled"))
		}
		return nil
	},
}

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage your own Gemini API key",
}

var keySetCmd = &cobra.Command{
	Use:   "set <api-key>",
	Short: "Use your own Gemini API key for chat requests",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := strings.TrimSpace(args[0])
		if key == "" {
			return &domain.ValidationError{Message: "api key must not be empty"}
		}
		if err := app.storage.Set(ctxOf(cmd), history.KeyGeminiAPIKey, key); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Gemini API key saved"))
		return nil
	},
}

var keyRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Stop sending your own Gemini API key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.storage.Remove(ctxOf(cmd), history.KeyGeminiAPIKey); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Gemini API key removed"))
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull chats from the server that are missing locally",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if app.store.User() == nil || !app.client.HasToken() {
			return &domain.UnauthorizedError{Message: "sign in with --token to sync chats"}
		}
		added, err := app.store.Sync(ctxOf(cmd))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %d new chats\n", successStyle.Render("Synced"), added)
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginEmail, "email", "e", "", "Email address (required)")
	loginCmd.Flags().StringVar(&loginName, "name", "", "Display name")
	loginCmd.Flags().StringVar(&loginID, "id", "", "Account id used for language preferences")
	loginCmd.Flags().StringVar(&loginToken, "token", "", "Supabase access token")
	logoutCmd.Flags().BoolVar(&logoutForget, "forget", false, "Also remove every local chat history")

	keyCmd.AddCommand(keySetCmd, keyRemoveCmd)
	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd, keyCmd, syncCmd)
}
