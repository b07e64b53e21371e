package credentials

// Credentials represents the stored memory API credentials in credentials.json.
type Credentials struct {
	AccessToken string `json:"access_token"`
	UserID      string `json:"user_id"`
	APIURL      string `json:"api_url,omitempty"`
}

// Configured reports whether an access token is present.
func (c *Credentials) Configured() bool {
	return c != nil && c.AccessToken != ""
}
