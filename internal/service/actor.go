package service

import "strings"

// Actor is the identity snapshot of the faculty member performing a ledger
// operation. It is supplied by the authentication collaborator and treated
// as untrusted display data; the ledger only stores it for provenance.
type Actor struct {
	ID    string
	Name  string
	Email string
	Role  string
}

// Display returns the best human-readable identifier for the actor.
func (a Actor) Display() string {
	if name := strings.TrimSpace(a.Name); name != "" {
		return name
	}
	if email := strings.TrimSpace(a.Email); email != "" {
		return email
	}
	return a.ID
}

// RequestMeta carries request-scoped metadata recorded on audit entries.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}
