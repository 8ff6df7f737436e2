package model

// User is an operator account. The relation is kept for schema
// compatibility; no HTTP route reads or writes it.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Password string `json:"-"` // argon2id PHC hash
}
