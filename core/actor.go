package core

// Actor identifies the authenticated user performing a mutation.
// Authentication itself is handled upstream (JWT claims at the API layer);
// services receive the Actor explicitly rather than reading ambient state.
type Actor struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

func (a Actor) IsZero() bool { return a.ID == "" }
