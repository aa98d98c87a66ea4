package server

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	sgerrors "github.com/jrsteele09/go-session-guard/internal/errors"
	"github.com/jrsteele09/go-session-guard/users"
	"github.com/rs/zerolog/log"
)

// InitialiseSystem creates the admin user when it does not exist yet.
// Returns the generated password on first creation (empty string if already exists
// or the password came from configuration).
func (s *Server) InitialiseSystem() (generatedPassword string, err error) {
	log.Info().Msg("🔧 Bootstrap: Checking system configuration...")

	username := s.config.GetAdminUsername()
	existing, err := s.users.GetByUsername(username)
	if err == nil && existing != nil {
		log.Info().Str("username", username).Msg("✅ Bootstrap: System already configured")
		return "", nil
	}
	if err != nil && !errors.Is(err, sgerrors.ErrUserNotFound) {
		return "", fmt.Errorf("failed to look up admin user: %w", err)
	}

	password := s.config.GetAdminPassword()
	if password == "" {
		if password, err = generateSecurePassword(); err != nil {
			return "", fmt.Errorf("failed to generate admin password: %w", err)
		}
		generatedPassword = password
	} else if err := users.ValidatePasswordStrength(password); err != nil {
		return "", fmt.Errorf("configured admin password rejected: %w", err)
	}

	hash, err := users.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("failed to hash admin password: %w", err)
	}
	admin := &users.User{
		Username:     username,
		Email:        username + "@localhost",
		PasswordHash: hash,
		FirstName:    "System",
		LastName:     "Administrator",
		Roles:        []users.Role{users.RoleAdmin},
		DateJoined:   s.issuer.Now(),
	}
	if err := s.users.Upsert(admin); err != nil {
		return "", fmt.Errorf("failed to create admin user: %w", err)
	}

	log.Info().Str("username", username).Msg("✅ Bootstrap complete: admin user created")
	if generatedPassword != "" {
		log.Info().Msgf("   Password:    %s", generatedPassword)
		log.Info().Msg("   ⚠️  SAVE THIS PASSWORD - it will not be displayed again!")
	}
	return generatedPassword, nil
}

// generateSecurePassword returns a random password that passes users.ValidatePasswordStrength.
func generateSecurePassword() (string, error) {
	for {
		b := make([]byte, 18)
		if _, err := rand.Read(b); err != nil {
			return "", err
		}
		password := base64.RawURLEncoding.EncodeToString(b)
		if users.ValidatePasswordStrength(password) == nil {
			return password, nil
		}
	}
}
