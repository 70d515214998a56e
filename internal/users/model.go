package users

import "github.com/defter-erp/defter/internal/store"

// Collection is the entity store collection for users.
const Collection = "users"

// Settings holds per-user interface preferences.
type Settings struct {
	Layout      string `json:"layout"`
	Theme       string `json:"theme"`
	AccentColor string `json:"accentColor,omitempty"`
	Language    string `json:"language"`
}

// User is an application account. Credentials live in configuration; this
// record carries profile and preferences only.
type User struct {
	store.Meta
	Username string   `json:"username"`
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Settings Settings `json:"settings"`
}

// DefaultSettings are applied to new accounts.
func DefaultSettings() Settings {
	return Settings{Layout: "vertical", Theme: "light", Language: "tr"}
}
