// Package token decodes chat API bearer tokens into session identity.
//
// The client never verifies the signature: the server is the authority and an
// expired or forged token is discovered on the first authenticated call.
package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"chatsync/internal/model"
)

// Claims is the JWT payload issued by the chat server.
type Claims struct {
	ID       int64  `json:"id"`
	WsID     int64  `json:"wsId"`
	WsName   string `json:"wsName"`
	Fullname string `json:"fullname"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}

// DecodeUser extracts the session user from a raw token without verification.
func DecodeUser(raw string) (model.User, error) {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return model.User{}, fmt.Errorf("decode token: %w", err)
	}
	u := model.User{
		ID:       claims.ID,
		WsID:     claims.WsID,
		WsName:   claims.WsName,
		Fullname: claims.Fullname,
		Email:    claims.Email,
	}
	if claims.IssuedAt != nil {
		u.CreatedAt = claims.IssuedAt.Time
	}
	return u, nil
}

// Workspace derives the session workspace from the same claims.
func Workspace(u model.User) model.Workspace {
	return model.Workspace{ID: u.WsID, Name: u.WsName}
}

// ExpiresAt reports the token expiry if the claim is present.
func ExpiresAt(raw string) (time.Time, bool) {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
