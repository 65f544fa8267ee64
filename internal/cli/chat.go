package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"mrilo/internal/domain"
	"mrilo/internal/domain/models"
)

var (
	sendNew      bool
	askSystem    string
	showMessages int
	showHTML     bool
)

var sendCmd = &cobra.Command{
	Use:   "send <message>",
	Short: "Send a message in the active chat",
	Long: `Send a message in the active chat and print the reply.

A chat is started automatically when none is active. Use --new to always
start a fresh one.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := ctxOf(cmd)
		if app.store.User() == nil {
			fmt.Fprintln(cmd.ErrOrStderr(), metaStyle.Render("Not signed in: this chat will not be saved."))
		}
		if sendNew {
			app.store.NewChat(ctx)
		}
		reply, err := app.store.SendMessage(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		printMessage(cmd.OutOrStdout(), reply)
		return nil
	},
}

var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Ask a one-off question without touching chat history",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := app.client.Complete(ctxOf(cmd), &models.OpenAIRequest{
			Message:      strings.Join(args, " "),
			SystemPrompt: askSystem,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderMarkdown(text))
		return nil
	},
}

var newCmd = &cobra.Command{
	Use:   "new",
	Short: "Start a new chat and make it active",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		session := app.store.NewChat(ctxOf(cmd))
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", successStyle.Render("Started chat"), idStyle.Render(session.ID))
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List chats, newest first",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		printSessions(cmd.OutOrStdout(), app.store.Bundle())
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show [chat-id]",
	Short: "Show the messages of a chat",
	Long: `Show the messages of a chat. Without an id the active chat is shown;
with one, that chat becomes active first.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := ctxOf(cmd)
		if len(args) == 1 {
			id, err := resolveChatID(app.store.Bundle(), args[0])
			if err != nil {
				return err
			}
			if err := app.store.SelectChat(ctx, id); err != nil {
				return err
			}
		}

		w := cmd.OutOrStdout()
		b := app.store.Bundle()
		if b.ActiveChatID == nil {
			fmt.Fprintln(w, metaStyle.Render("No active chat."))
			return nil
		}
		if !showHTML {
			for _, s := range b.ChatSessions {
				if s.ID == *b.ActiveChatID {
					fmt.Fprintln(w, headerStyle.Render(s.Title))
					break
				}
			}
		}

		messages := app.store.Messages()
		if showMessages > 0 && len(messages) > showMessages {
			messages = messages[len(messages)-showMessages:]
		}
		if showHTML {
			return writeHTML(w, messages)
		}
		for _, m := range messages {
			printMessage(w, m)
		}
		return nil
	},
}

var useCmd = &cobra.Command{
	Use:   "use <chat-id>",
	Short: "Make a chat the active one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resolveChatID(app.store.Bundle(), args[0])
		if err != nil {
			return err
		}
		if err := app.store.SelectChat(ctxOf(cmd), id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", successStyle.Render("Active chat"), idStyle.Render(id))
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete <chat-id>",
	Aliases: []string{"rm"},
	Short:   "Delete a chat",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resolveChatID(app.store.Bundle(), args[0])
		if err != nil {
			return err
		}
		if err := app.store.DeleteChat(ctxOf(cmd), id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", successStyle.Render("Deleted chat"), idStyle.Render(id))
		return nil
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename <chat-id> <title>",
	Short: "Rename a chat",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resolveChatID(app.store.Bundle(), args[0])
		if err != nil {
			return err
		}
		title := strings.Join(args[1:], " ")
		if err := app.store.RenameChat(ctxOf(cmd), id, title); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", successStyle.Render("Renamed to"), titleStyle.Render(title))
		return nil
	},
}

var favoriteCmd = &cobra.Command{
	Use:     "favorite <chat-id>",
	Aliases: []string{"fav"},
	Short:   "Toggle a chat's favorite mark",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resolveChatID(app.store.Bundle(), args[0])
		if err != nil {
			return err
		}
		on, err := app.store.ToggleFavorite(ctxOf(cmd), id)
		if err != nil {
			return err
		}
		if on {
			fmt.Fprintln(cmd.OutOrStdout(), favoriteStyle.Render("Added to favorites"))
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), metaStyle.Render("Removed from favorites"))
		}
		return nil
	},
}

// resolveChatID accepts a full id or a unique prefix of one
func resolveChatID(b models.ChatBundle, ref string) (string, error) {
	var matches []string
	for _, s := range b.ChatSessions {
		if s.ID == ref {
			return s.ID, nil
		}
		if strings.HasPrefix(s.ID, ref) {
			matches = append(matches, s.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", &domain.NotFoundError{Message: fmt.Sprintf("chat not found: %s", ref)}
	case 1:
		return matches[0], nil
	default:
		return "", &domain.ValidationError{Message: fmt.Sprintf("chat id %q is ambiguous (%d matches)", ref, len(matches))}
	}
}

func init() {
	sendCmd.Flags().BoolVarP(&sendNew, "new", "n", false, "Start a new chat for this message")
	askCmd.Flags().StringVarP(&askSystem, "system", "s", "", "System prompt for the completion")
	showCmd.Flags().IntVarP(&showMessages, "last", "l", 0, "Only show the last N messages")
	showCmd.Flags().BoolVar(&showHTML, "html", false, "Print the chat as an HTML fragment")

	rootCmd.AddCommand(sendCmd, askCmd, newCmd, listCmd, showCmd, useCmd, deleteCmd, renameCmd, favoriteCmd)
}
