package jwttoken

import (
	"execledger/internal/platform/middleware"
)

// JWTServiceAdapter exposes JWTService as a middleware.TokenValidator.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*middleware.Claims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &middleware.Claims{
		Subject: claims.Subject,
		TokenID: claims.ID,
	}, nil
}
