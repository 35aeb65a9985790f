package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/sparrowretail/shelfline-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	ShopID   string
	ShopName string
	Role     enums.ShopRole
	JTI      string
}

// AccessTokenClaims represents the typed JWT presented by clients. The shop
// identity in the token is the only tenant binding the API trusts.
type AccessTokenClaims struct {
	ShopID   string         `json:"shop_id"`
	ShopName string         `json:"shop_name,omitempty"`
	Role     enums.ShopRole `json:"role"`
	jwt.RegisteredClaims
}
