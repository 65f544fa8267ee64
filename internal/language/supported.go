package language

import (
	"strings"
	"unicode"
)

// English is the fallback for anything undetected or unsupported
const English = "English"

// supported lists the languages a reply can be produced in, in display order.
var supported = []string{
	"English", "Hindi", "Urdu", "Marathi", "Tamil", "Bengali", "French", "Spanish",
	"German", "Italian", "Portuguese", "Russian", "Japanese", "Korean", "Chinese",
	"Arabic", "Turkish", "Vietnamese", "Thai", "Dutch", "Polish", "Ukrainian",
	"Greek", "Hebrew", "Indonesian", "Malay", "Filipino",
}

var supportedSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(supported))
	for _, name := range supported {
		m[name] = struct{}{}
	}
	return m
}()

// SupportedLanguages returns a copy of the supported language names in display order.
func SupportedLanguages() []string {
	out := make([]string, len(supported))
	copy(out, supported)
	return out
}

// IsSupported reports whether name is exactly one of the supported language names.
func IsSupported(name string) bool {
	_, ok := supportedSet[name]
	return ok
}

// Normalize title-cases a user supplied language name ("spanish" -> "Spanish").
func Normalize(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	runes := []rune(strings.ToLower(name))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// SupportedList renders the names as "A, B, ..., or Z".
func SupportedList() string {
	head := strings.Join(supported[:len(supported)-1], ", ")
	return head + ", or " + supported[len(supported)-1]
}

// ClarificationMessage asks the user to pick one language when a message mixes several.
func ClarificationMessage() string {
	var b strings.Builder
	b.WriteString("I notice your message might contain multiple languages. Which language would you prefer me to respond in? You can choose from:\n")
	for _, name := range supported {
		b.WriteString("- ")
		b.WriteString(name)
		b.WriteString("\n")
	}
	b.WriteString("\nPlease specify your preferred language and I'll continue the conversation in that language.")
	return b.String()
}

// UnsupportedMessage is the reply to a language switch naming an unsupported language.
func UnsupportedMessage(name string) string {
	return "I don't support " + name + ". Please choose from the supported languages: " + SupportedList() + "."
}

// SwitchConfirmation is the reply to an accepted language switch.
func SwitchConfirmation(name string) string {
	return "I'll continue our conversation in " + name + ". How can I help you today?"
}
