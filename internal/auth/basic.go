package auth

import "net/http"

// BasicCredentials are the static credentials the ingredient collaborator
// expects on its endpoints
type BasicCredentials struct {
	User     string
	Password string
}

// Configured reports whether a user name was set
func (c BasicCredentials) Configured() bool {
	return c.User != ""
}

// Apply sets the Authorization header on an outgoing request when credentials
// are configured
func (c BasicCredentials) Apply(req *http.Request) {
	if !c.Configured() {
		return
	}
	req.SetBasicAuth(c.User, c.Password)
}
