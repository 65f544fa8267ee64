package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var folderCmd = &cobra.Command{
	Use:   "folder",
	Short: "Organize chats into folders",
}

var folderCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create an empty folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.store.CreateFolder(ctxOf(cmd), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", successStyle.Render("Created folder"), folderStyle.Render(args[0]))
		return nil
	},
}

var folderMoveCmd = &cobra.Command{
	Use:   "move <chat-id> <folder>",
	Short: "Move a chat into a folder",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resolveChatID(app.store.Bundle(), args[0])
		if err != nil {
			return err
		}
		if err := app.store.MoveToFolder(ctxOf(cmd), id, args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", successStyle.Render("Moved to"), folderStyle.Render(args[1]))
		return nil
	},
}

var folderListCmd = &cobra.Command{
	Use:   "list",
	Short: "List folders and how many chats each holds",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		folders := app.store.Bundle().Folders
		w := cmd.OutOrStdout()
		if len(folders) == 0 {
			fmt.Fprintln(w, metaStyle.Render("No folders."))
			return nil
		}
		names := make([]string, 0, len(folders))
		for name := range folders {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "%s %s\n", folderStyle.Render(name), metaStyle.Render(fmt.Sprintf("(%d)", len(folders[name]))))
		}
		return nil
	},
}

func init() {
	folderCmd.AddCommand(folderCreateCmd, folderMoveCmd, folderListCmd)
	rootCmd.AddCommand(folderCmd)
}
