package entity

// Operator is the caller of a runtime admin route, taken from its bearer token.
type Operator struct {
	Subject string `json:"sub"`
	Role    string `json:"role"`
}
