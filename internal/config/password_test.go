package config

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func fastPasswordConfig(pepper string) *PasswordConfig {
	return &PasswordConfig{BcryptCost: bcrypt.MinCost, Pepper: pepper}
}

func TestNewPasswordConfig(t *testing.T) {
	tests := []struct {
		name     string
		cost     string
		wantCost int
		wantErr  bool
	}{
		{"default", "", 12, false},
		{"custom", "10", 10, false},
		{"too high", "15", 0, true},
		{"too low", "3", 0, true},
		{"not a number", "high", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("BCRYPT_COST", tt.cost)
			t.Setenv("PASSWORD_PEPPER", "pep")

			cfg, err := NewPasswordConfig()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCost, cfg.BcryptCost)
			assert.Equal(t, "pep", cfg.Pepper)
		})
	}
}

func TestPasswordConfig_HashAndVerify(t *testing.T) {
	cfg := fastPasswordConfig("")

	hash, err := cfg.HashPassword("portfolio123")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$2a$"))

	assert.True(t, cfg.VerifyPassword("portfolio123", hash))
	assert.False(t, cfg.VerifyPassword("portfolio124", hash))
	assert.False(t, cfg.VerifyPassword("portfolio123", "not-a-hash"))
}

func TestPasswordConfig_Pepper(t *testing.T) {
	peppered := fastPasswordConfig("server-secret")
	hash, err := peppered.HashPassword("pw")
	require.NoError(t, err)

	assert.True(t, peppered.VerifyPassword("pw", hash))
	assert.False(t, fastPasswordConfig("").VerifyPassword("pw", hash), "pepper is part of the secret")
	assert.False(t, fastPasswordConfig("rotated").VerifyPassword("pw", hash))
}

func TestPasswordConfig_SaltUniqueness(t *testing.T) {
	cfg := fastPasswordConfig("")
	a, err := cfg.HashPassword("same")
	require.NoError(t, err)
	b, err := cfg.HashPassword("same")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.True(t, cfg.VerifyPassword("same", a))
	assert.True(t, cfg.VerifyPassword("same", b))
}

func TestPasswordConfig_PasswordExceeding72Bytes(t *testing.T) {
	_, err := fastPasswordConfig("").HashPassword(strings.Repeat("x", 73))
	assert.Error(t, err)
}

func TestPasswordConfig_ConcurrentAccess(t *testing.T) {
	cfg := fastPasswordConfig("p")
	hash, err := cfg.HashPassword("pw")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, cfg.VerifyPassword("pw", hash))
		}()
	}
	wg.Wait()
}
