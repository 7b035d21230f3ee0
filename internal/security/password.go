package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// Output and salt lengths per secret class. A value must be verified with the
// same output length it was hashed with.
const (
	PasswordKeyLength  = 64
	PasswordSaltLength = 16
	OTPKeyLength       = 16
	OTPSaltLength      = 4
)

// scrypt cost parameters (N, r, p).
const (
	scryptN = 16384
	scryptR = 8
	scryptP = 1
)

// Hash derives a "salt:hash" string for secret. Both halves are hex encoded and
// the hex salt is what gets fed into the KDF.
func Hash(secret string, outputLength, saltLength int) (string, error) {
	raw := make([]byte, saltLength)

	_, err := rand.Read(raw)

	if err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	salt := hex.EncodeToString(raw)

	key, err := derive(secret, salt, outputLength)

	if err != nil {
		return "", err
	}

	return salt + ":" + hex.EncodeToString(key), nil
}

// Verify reports whether secret matches stored. Malformed input or a stored hash
// produced with a different output length yields false.
func Verify(secret, stored string, outputLength int) bool {
	salt, storedHex, ok := strings.Cut(stored, ":")

	if !ok || salt == "" || storedHex == "" {
		return false
	}

	expected, err := hex.DecodeString(storedHex)

	if err != nil || len(expected) != outputLength {
		return false
	}

	candidate, err := derive(secret, salt, outputLength)

	if err != nil {
		return false
	}

	return subtle.ConstantTimeCompare(candidate, expected) == 1
}

func derive(secret, salt string, outputLength int) ([]byte, error) {
	key, err := scrypt.Key([]byte(secret), []byte(salt), scryptN, scryptR, scryptP, outputLength)

	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}

	return key, nil
}

// HashPassword hashes a plaintext password with the password lengths.
func HashPassword(plain string) (string, error) {
	return Hash(plain, PasswordKeyLength, PasswordSaltLength)
}

// CheckPassword compares a stored password hash with a plaintext password.
func CheckPassword(hash, plain string) bool {
	return Verify(plain, hash, PasswordKeyLength)
}

func HashOTP(code string) (string, error) {
	return Hash(code, OTPKeyLength, OTPSaltLength)
}

func CheckOTP(hash, code string) bool {
	return Verify(code, hash, OTPKeyLength)
}
