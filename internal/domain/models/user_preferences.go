package models

import "time"

// JSONMap is a type alias for JSONB columns
type JSONMap map[string]interface{}

// UserPreferences represents user-specific settings.
// All preferences are stored in a single JSONB column with namespaced structure.
type UserPreferences struct {
	UserID      string    `json:"user_id" db:"user_id"`
	Preferences JSONMap   `json:"preferences" db:"preferences"` // {language, ui}
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Language returns the reply language namespace, or "" when unset
func (up *UserPreferences) Language() string {
	if up == nil || up.Preferences == nil {
		return ""
	}
	lang, _ := up.Preferences["language"].(string)
	return lang
}

// SetLanguage sets the language namespace; "" clears it
func (up *UserPreferences) SetLanguage(language string) {
	if up.Preferences == nil {
		up.Preferences = JSONMap{}
	}
	if language == "" {
		up.Preferences["language"] = nil
		return
	}
	up.Preferences["language"] = language
}

// UIPreferences represents the ui namespace in preferences
type UIPreferences struct {
	Theme       string `json:"theme"`        // "light", "dark", "auto"
	CompactMode *bool  `json:"compact_mode"` // Pointer to allow null
}

// GetUI extracts the ui namespace from preferences
func (up *UserPreferences) GetUI() *UIPreferences {
	ui := &UIPreferences{Theme: "light"}
	if up.Preferences == nil {
		return ui
	}
	raw, ok := up.Preferences["ui"].(map[string]interface{})
	if !ok {
		return ui
	}
	if theme, ok := raw["theme"].(string); ok && theme != "" {
		ui.Theme = theme
	}
	if compact, ok := raw["compact_mode"].(bool); ok {
		ui.CompactMode = &compact
	}
	return ui
}

// SetUI sets the ui namespace in preferences
func (up *UserPreferences) SetUI(ui *UIPreferences) {
	if up.Preferences == nil {
		up.Preferences = JSONMap{}
	}
	m := map[string]interface{}{"theme": ui.Theme}
	if ui.CompactMode != nil {
		m["compact_mode"] = *ui.CompactMode
	}
	up.Preferences["ui"] = m
}

// OptionalLanguage tracks tri-state semantics for language updates (RFC 7396 PATCH).
// This is transport-agnostic (no JSON tags) - handler maps from httputil.OptionalString.
//   - Present=false: field absent from request (don't change)
//   - Present=true, Value=nil: field is null (clear, fall back to detection)
//   - Present=true, Value=&"Spanish": set
type OptionalLanguage struct {
	Present bool
	Value   *string
}

// UpdatePreferencesRequest represents a partial update of user preferences
type UpdatePreferencesRequest struct {
	Language OptionalLanguage // mapped from handler DTO
	UI       *UIPreferences   `json:"ui"`
}
