package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is what the API reads from a token.
type Claims struct {
	UserID string
	// Role is empty for ordinary users.
	Role string
}

// GenerateJWT issues an HS256 token carrying the user id in "sub".
func GenerateJWT(secret, userID string, ttl time.Duration) (string, error) {
	return GenerateRoleJWT(secret, userID, "", ttl)
}

// GenerateRoleJWT is GenerateJWT with a "role" claim. An empty role is omitted.
func GenerateRoleJWT(secret, userID, role string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is empty")
	}
	claims := jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(ttl).Unix(),
	}
	if role != "" {
		claims["role"] = role
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseJWT validates an HS256 token and returns the user id from "sub" or,
// for older tokens, "userId".
func ParseJWT(secret, tokenString string) (string, error) {
	c, err := ParseClaims(secret, tokenString)
	return c.UserID, err
}

func ParseClaims(secret, tokenString string) (Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return Claims{}, errors.New("invalid token")
	}
	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, errors.New("invalid claims")
	}
	role, _ := mc["role"].(string)
	if sub, _ := mc["sub"].(string); sub != "" {
		return Claims{UserID: sub, Role: role}, nil
	}
	switch id := mc["userId"].(type) {
	case string:
		if id != "" {
			return Claims{UserID: id, Role: role}, nil
		}
	case float64:
		return Claims{UserID: fmt.Sprintf("%d", int64(id)), Role: role}, nil
	}
	return Claims{}, errors.New("user id claim missing")
}
