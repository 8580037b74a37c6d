package jwt

import "github.com/golang-jwt/jwt"

// Payload defines the JWT claims issued to a signed-in user.
type Payload struct {
	// StandardClaims carries expiry, issue time and issuer.
	jwt.StandardClaims

	// UserID is the stable identifier of the account the token was issued for.
	UserID string `json:"userId"`
}
