package cli

import (
	"fmt"
	"html"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"
	"mrilo/internal/domain/models"
	"mrilo/internal/formatting"
)

// renderMarkdown renders AI text for the terminal, falling back to the raw text
func renderMarkdown(text string) string {
	out, err := glamour.Render(text, "dark")
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}

func printMessage(w io.Writer, m models.Message) {
	if m.IsAI {
		fmt.Fprintln(w, assistantMessageStyle.Render("Mrilo")+" "+timestampStyle.Render(m.Timestamp.Local().Format("Jan 2 15:04")))
		fmt.Fprintln(w, renderMarkdown(m.Text))
		for _, src := range m.Sources {
			label := src.Title
			if label == "" {
				label = src.URL
			}
			fmt.Fprintln(w, metaStyle.Render(fmt.Sprintf("  [%s] %s %s", src.Type, label, src.URL)))
		}
		fmt.Fprintln(w)
		return
	}
	fmt.Fprintln(w, userMessageStyle.Render("You")+" "+timestampStyle.Render(m.Timestamp.Local().Format("Jan 2 15:04")))
	fmt.Fprintln(w, messageContentStyle.Render(m.Text))
}

// writeHTML prints messages as an HTML fragment. Replies go through the
// Markdown renderer; user text is escaped as typed.
func writeHTML(w io.Writer, messages []models.Message) error {
	for _, m := range messages {
		if !m.IsAI {
			fmt.Fprintf(w, "<article class=\"message user\"><p>%s</p></article>\n", html.EscapeString(m.Text))
			continue
		}
		body, err := formatting.RenderMarkdown(m.Text)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "<article class=\"message assistant\">%s</article>\n", body)
	}
	return nil
}

// folderIndex maps a session id to the folder holding it
func folderIndex(b models.ChatBundle) map[string]string {
	idx := make(map[string]string)
	names := make([]string, 0, len(b.Folders))
	for name := range b.Folders {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, id := range b.Folders[name] {
			idx[id] = name
		}
	}
	return idx
}

func printSessions(w io.Writer, b models.ChatBundle) {
	if len(b.ChatSessions) == 0 {
		fmt.Fprintln(w, metaStyle.Render("No chats yet. Start one with: mrilo send <message>"))
		return
	}

	folders := folderIndex(b)
	favorites := make(map[string]bool, len(b.Favorites))
	for _, id := range b.Favorites {
		favorites[id] = true
	}

	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%d chats", len(b.ChatSessions))))
	for _, s := range b.ChatSessions {
		marker := "  "
		if b.ActiveChatID != nil && *b.ActiveChatID == s.ID {
			marker = activeStyle.Render("> ")
		}
		star := " "
		if favorites[s.ID] {
			star = favoriteStyle.Render("*")
		}
		line := fmt.Sprintf("%s%s %s %s %s",
			marker, star,
			idStyle.Render(shortID(s.ID)),
			titleStyle.Render(s.Title),
			metaStyle.Render(fmt.Sprintf("(%d messages, %s)", len(s.Messages), s.Timestamp.Local().Format("Jan 2 15:04"))),
		)
		if folder, ok := folders[s.ID]; ok {
			line += " " + folderStyle.Render("["+folder+"]")
		}
		fmt.Fprintln(w, line)
	}

	var empty []string
	for name, ids := range b.Folders {
		if len(ids) == 0 {
			empty = append(empty, name)
		}
	}
	if len(empty) > 0 {
		sort.Strings(empty)
		fmt.Fprintln(w, metaStyle.Render("Empty folders: "+strings.Join(empty, ", ")))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
