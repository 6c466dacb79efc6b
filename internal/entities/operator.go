package entities

// Operator is a person allowed into the admin API.
type Operator struct {
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	Role         string `json:"role"`
}
