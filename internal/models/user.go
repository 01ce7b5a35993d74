package models

// User represents a depositor identity in the system
type User struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`        // Not serialized
	OwnerID      string `json:"owner_id"` // Campaign hero this user banks as
	CreatedAt    string `json:"created_at"`
}
