// Package api provides a local emulator of the memory API the hooks call.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8787")
	ListenAddr string

	// AccessToken, when set, must be presented as a bearer token on every
	// memory endpoint. Empty accepts any caller.
	AccessToken string

	// DefaultLimit caps retrieval when the request carries no limit.
	DefaultLimit int
}
