package config

const (
	// MaxMessageLength is the maximum length (in characters) of a single chat message.
	// Long enough for pasted code, short enough to stay within provider context limits.
	MaxMessageLength = 8000

	// MaxChatTitleLength is the maximum length for chat titles.
	// Limited to 255 to fit in PostgreSQL VARCHAR(255).
	MaxChatTitleLength = 255

	// MaxFolderNameLength is the maximum length for folder names.
	MaxFolderNameLength = 255

	// TitlePreviewLength is how many characters of the first user message
	// become the title of a new chat.
	TitlePreviewLength = 30

	// MaxGuestPreferences bounds the process-local language choices kept for
	// callers without a verified token.
	MaxGuestPreferences = 10000

	// MaxLogFiles is how many rotated log files SetupLogFile keeps.
	MaxLogFiles = 10
)
