package config

import (
	"fmt"
	"os"
)

// DefaultAdminUsername is used when PORTFOLIO_ADMIN_USER is unset.
const DefaultAdminUsername = "admin"

// AuthConfig configures the login gate in front of the editor routes.
type AuthConfig struct {
	Username     string
	PasswordHash string
	JWT          *JWTConfig
	Password     *PasswordConfig
}

// NewAuthConfig reads the gate credentials. PORTFOLIO_ADMIN_PASSWORD_HASH
// takes a bcrypt hash; otherwise PORTFOLIO_ADMIN_PASSWORD is hashed at
// startup. One of the two is required.
func NewAuthConfig() (*AuthConfig, error) {
	jwtCfg, err := NewJWTConfig()
	if err != nil {
		return nil, err
	}
	pwCfg, err := NewPasswordConfig()
	if err != nil {
		return nil, err
	}

	username := os.Getenv("PORTFOLIO_ADMIN_USER")
	if username == "" {
		username = DefaultAdminUsername
	}

	hash := os.Getenv("PORTFOLIO_ADMIN_PASSWORD_HASH")
	if hash == "" {
		plain := os.Getenv("PORTFOLIO_ADMIN_PASSWORD")
		if plain == "" {
			return nil, fmt.Errorf("PORTFOLIO_ADMIN_PASSWORD or PORTFOLIO_ADMIN_PASSWORD_HASH is required")
		}
		if hash, err = pwCfg.HashPassword(plain); err != nil {
			return nil, err
		}
	}

	return &AuthConfig{
		Username:     username,
		PasswordHash: hash,
		JWT:          jwtCfg,
		Password:     pwCfg,
	}, nil
}

// CheckCredentials reports whether username and password open the gate.
func (c *AuthConfig) CheckCredentials(username, password string) bool {
	// Always run bcrypt so a wrong username costs the same as a wrong password.
	ok := c.Password.VerifyPassword(password, c.PasswordHash)
	return ok && username == c.Username
}
