package service

import "github.com/Hollow93/social-casino/internal/modules/auth/domain"

// AuthService admits a connection from its platform credential
type AuthService interface {
	Validate(initData string) domain.Result
}
