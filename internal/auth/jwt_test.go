// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package auth

import (
	"io"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/relay/internal/config"
	"github.com/tomtom215/relay/internal/logging"
)

func init() { //nolint:gochecknoinits
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

// testJWTConfig returns a standard test security config for JWT
func testJWTConfig() *config.SecurityConfig {
	return &config.SecurityConfig{
		JWTSecret:      "test-secret-key-that-is-at-least-32-characters-long",
		SessionTimeout: 1 * time.Hour,
	}
}

func TestNewJWTManager(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.SecurityConfig
		wantErr bool
	}{
		{name: "valid secret", cfg: testJWTConfig()},
		{name: "empty secret", cfg: &config.SecurityConfig{SessionTimeout: time.Hour}, wantErr: true},
		{name: "nil config", cfg: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager, err := NewJWTManager(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Error("NewJWTManager() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewJWTManager() unexpected error = %v", err)
			}
			if manager == nil {
				t.Error("NewJWTManager() returned nil manager")
			}
		})
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	manager, err := NewJWTManager(testJWTConfig())
	if err != nil {
		t.Fatalf("NewJWTManager() error = %v", err)
	}

	tests := []struct {
		name     string
		username string
		role     string
		admin    bool
	}{
		{"admin token", "alice", RoleAdmin, true},
		{"user token", "bob", RoleUser, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := manager.GenerateToken(tt.username, tt.role)
			if err != nil {
				t.Fatalf("GenerateToken() error = %v", err)
			}

			claims, err := manager.ValidateToken(token)
			if err != nil {
				t.Fatalf("ValidateToken() error = %v", err)
			}
			if claims.Username != tt.username {
				t.Errorf("Username = %q, want %q", claims.Username, tt.username)
			}
			if claims.Subject != tt.username {
				t.Errorf("Subject = %q, want %q", claims.Subject, tt.username)
			}
			if claims.Issuer != Issuer {
				t.Errorf("Issuer = %q, want %q", claims.Issuer, Issuer)
			}
			if claims.IsAdmin() != tt.admin {
				t.Errorf("IsAdmin() = %v, want %v", claims.IsAdmin(), tt.admin)
			}
		})
	}
}

func TestValidateToken_Invalid(t *testing.T) {
	manager, err := NewJWTManager(testJWTConfig())
	if err != nil {
		t.Fatalf("NewJWTManager() error = %v", err)
	}

	for _, token := range []string{"invalid.token.format", "", "not_a_jwt_token"} {
		claims, err := manager.ValidateToken(token)
		if err == nil {
			t.Errorf("ValidateToken(%q) expected error, got nil", token)
		}
		if claims != nil {
			t.Errorf("ValidateToken(%q) expected nil claims", token)
		}
	}
}

func TestValidateToken_WrongSecret(t *testing.T) {
	manager1, _ := NewJWTManager(&config.SecurityConfig{
		JWTSecret:      "first_secret_key_that_is_long_enough_for_testing_12345",
		SessionTimeout: time.Hour,
	})
	manager2, _ := NewJWTManager(&config.SecurityConfig{
		JWTSecret:      "second_secret_key_that_is_different_from_first_12345",
		SessionTimeout: time.Hour,
	})

	token, err := manager1.GenerateToken("alice", RoleAdmin)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	if claims, err := manager2.ValidateToken(token); err == nil || claims != nil {
		t.Errorf("ValidateToken() with wrong secret = (%v, %v), want error", claims, err)
	}
}

func TestValidateToken_Expired(t *testing.T) {
	manager, err := NewJWTManager(testJWTConfig())
	if err != nil {
		t.Fatalf("NewJWTManager() error = %v", err)
	}

	manager.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err := manager.GenerateToken("alice", RoleUser)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	manager.now = time.Now
	if claims, err := manager.ValidateToken(token); err == nil || claims != nil {
		t.Errorf("ValidateToken() on expired token = (%v, %v), want error", claims, err)
	}
}

func TestValidateToken_RejectsForeignIssuerAndAlgorithm(t *testing.T) {
	cfg := testJWTConfig()
	manager, _ := NewJWTManager(cfg)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Username: "alice",
		Role:     RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := foreign.SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	if _, err := manager.ValidateToken(signed); err == nil {
		t.Error("ValidateToken() accepted a token from a foreign issuer")
	}

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		Username:         "alice",
		Role:             RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{Issuer: Issuer},
	})
	none, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("SignedString(none) error = %v", err)
	}
	if _, err := manager.ValidateToken(none); err == nil {
		t.Error("ValidateToken() accepted an alg=none token")
	}
}

func TestValidateToken_MissingUsername(t *testing.T) {
	manager, _ := NewJWTManager(testJWTConfig())
	token, err := manager.GenerateToken("", RoleUser)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	if _, err := manager.ValidateToken(token); err == nil {
		t.Error("ValidateToken() accepted a token without a username")
	}
}
