package domain

// Principal is the identity resolved from a bearer credential.
type Principal struct {
	Username string  `json:"preferred_username"`
	ID       string  `json:"sub"`
	Email    string  `json:"email"`
	Orcid    *string `json:"orcid,omitempty"`
}

func (p Principal) Authenticated() bool { return p.Username != "" }
