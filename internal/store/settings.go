package store

import "github.com/google/uuid"

// VisualMode controls how aggressively the UI styles the countdown.
type VisualMode string

const (
	VisualCalm       VisualMode = "calm"
	VisualStandard   VisualMode = "standard"
	VisualAggressive VisualMode = "aggressive"
)

// Quote is a motivational line shown on the timer view.
type Quote struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Author    string `json:"author,omitempty"`
	IsDefault bool   `json:"is_default,omitempty"`
}

// Settings are process-wide, loaded once at startup and persisted after
// every mutation.
type Settings struct {
	PasswordHash              string     `json:"password_hash"`
	VisualMode                VisualMode `json:"visual_mode"`
	QuotesEnabled             bool       `json:"quotes_enabled"`
	Quotes                    []Quote    `json:"quotes"`
	SoundEnabled              bool       `json:"sound_enabled"`
	SoundVolume               float64    `json:"sound_volume"`
	ExtensionThresholdPercent float64    `json:"extension_threshold_percent"`
	LongPressSeconds          int        `json:"long_press_seconds"`
	OnboardingCompleted       bool       `json:"onboarding_completed"`
}

// DefaultSettings returns the out-of-the-box configuration.
func DefaultSettings() Settings {
	return Settings{
		PasswordHash:              "",
		VisualMode:                VisualStandard,
		QuotesEnabled:             true,
		Quotes:                    DefaultQuotes(),
		SoundEnabled:              true,
		SoundVolume:               0.5,
		ExtensionThresholdPercent: 10,
		LongPressSeconds:          5,
		OnboardingCompleted:       false,
	}
}

// DefaultQuotes returns the built-in quote set.
func DefaultQuotes() []Quote {
	return []Quote{
		{ID: "default-1", Text: "The secret of getting ahead is getting started.", Author: "Mark Twain", IsDefault: true},
		{ID: "default-2", Text: "Deep work is the ability to focus without distraction on a cognitively demanding task.", Author: "Cal Newport", IsDefault: true},
		{ID: "default-3", Text: "What gets measured gets managed.", Author: "Peter Drucker", IsDefault: true},
		{ID: "default-4", Text: "Discipline equals freedom.", Author: "Jocko Willink", IsDefault: true},
		{ID: "default-5", Text: "The only way to do great work is to love what you do.", Author: "Steve Jobs", IsDefault: true},
	}
}

// NewQuote builds a user quote with a fresh id.
func NewQuote(text, author string) Quote {
	return Quote{
		ID:     uuid.NewString(),
		Text:   text,
		Author: author,
	}
}
