// Package session tracks shopper sessions: the cookie id, the in-memory
// registry of live sessions and the few keys kept in Redis across redirects.
package session

// Identity is the authenticated-session block.
type Identity struct {
	ID          int64  `json:"id"`
	Role        string `json:"rol"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	Phone       string `json:"telefono,omitempty"`
	Deactivated bool   `json:"fechaBaja"`
}

// Active reports whether the identity may place orders.
func (i Identity) Active() bool {
	return i.ID > 0 && !i.Deactivated
}
