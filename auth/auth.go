// Copyright (c) 2025 Jason Blum.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidManagerKey = errors.New("invalid manager key")
)

// GenerateID creates a random hex ID of the specified byte length
func GenerateID(byteLen int) (string, error) {
	b := make([]byte, byteLen)
	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("failed to generate random ID: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// GenerateManagerKey creates an HMAC-based manager key for a community
// This is deterministic and verifiable
func GenerateManagerKey(communityID, salt string) string {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(communityID))
	sum := h.Sum(nil)
	// Use URL-safe base64 and trim padding for cleaner keys
	return strings.TrimRight(base64.URLEncoding.EncodeToString(sum), "=")
}

// ValidateManagerKey checks if the provided key is valid for the community
func ValidateManagerKey(communityID, managerKey, salt string) error {
	expected := GenerateManagerKey(communityID, salt)
	if !hmac.Equal([]byte(managerKey), []byte(expected)) {
		return ErrInvalidManagerKey
	}
	return nil
}

// GenerateMemberToken creates a random secure token for a member
// This is used to identify members when voting and managing followings
func GenerateMemberToken() (string, error) {
	b := make([]byte, 24) // 24 bytes = 192 bits of entropy
	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("failed to generate member token: %w", err)
	}
	// URL-safe base64 without padding
	return strings.TrimRight(base64.URLEncoding.EncodeToString(b), "="), nil
}
