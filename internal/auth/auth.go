// Package auth guards the HTTP API with a static bearer token.
package auth

import (
	"crypto/subtle"
	"errors"
	"strings"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

// Subject identifies the caller of an authenticated request.
type Subject struct {
	Name string
}

// Service checks bearer tokens. A Service without a token lets every
// request through as the anonymous subject.
type Service struct {
	token string
	name  string
}

// NewStatic accepts requests carrying token. name labels the caller in the
// audit log.
func NewStatic(token, name string) *Service {
	if name == "" {
		name = "api"
	}
	return &Service{token: strings.TrimSpace(token), name: name}
}

// Enabled reports whether a token is required.
func (s *Service) Enabled() bool {
	return s != nil && s.token != ""
}

// Authenticate validates an Authorization header value.
func (s *Service) Authenticate(authorization string) (*Subject, error) {
	if !s.Enabled() {
		return &Subject{Name: "anonymous"}, nil
	}
	scheme, token, ok := strings.Cut(strings.TrimSpace(authorization), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return nil, ErrMissingToken
	}
	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(s.token)) != 1 {
		return nil, ErrInvalidToken
	}
	return &Subject{Name: s.name}, nil
}
