// Package auth provides a high-level API for persisting and retrieving user credentials from the system keyring.
package auth

import (
	"github.com/zalando/go-keyring"
)

const (
	service = "songdl-cli"
	user    = "tidal-refresh-token"
)

// SetRefreshToken persists the provider OAuth refresh token to the system keyring.
func SetRefreshToken(token string) error {
	return keyring.Set(service, user, token)
}

// GetRefreshToken retrieves the provider OAuth refresh token from the system keyring.
func GetRefreshToken() (string, error) {
	return keyring.Get(service, user)
}

// DeleteRefreshToken removes the provider OAuth refresh token from the system keyring.
func DeleteRefreshToken() error {
	return keyring.Delete(service, user)
}
