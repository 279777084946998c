package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims is the token payload issued by the upstream auth service. The
// core consumes it read-only to build a Principal.
type JWTClaims struct {
	UserID string `json:"user_id"`
	Admin  bool   `json:"admin"`
	jwt.RegisteredClaims
}

// Principal converts validated claims into the request principal.
func (c *JWTClaims) Principal() Principal {
	return Principal{UserID: c.UserID, Admin: c.Admin}
}
