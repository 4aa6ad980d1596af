package domain

// Config carries the settings the HTTP layer needs.
type Config struct {
	RequireOwnerScope bool
	AuthEnabled       bool
}
