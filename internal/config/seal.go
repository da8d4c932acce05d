package config

import (
	"fmt"

	"github.com/firdasafridi/gocrypt"
)

// sealed carries a password through gocrypt's tag-driven AES.
type sealed struct {
	Password string `gocrypt:"aes"`
}

func crypter(secret string) (*gocrypt.Option, error) {
	aesOpt, err := gocrypt.NewAESOpt(secret)
	if err != nil {
		return nil, fmt.Errorf("invalid secret: %w", err)
	}
	return &gocrypt.Option{AESOpt: aesOpt}, nil
}

// Seal encrypts password with the hex encoded AES key secret. The result is
// what goes into config.yaml when secret is set.
func Seal(secret, password string) (string, error) {
	opt, err := crypter(secret)
	if err != nil {
		return "", err
	}
	s := sealed{Password: password}
	if err := gocrypt.New(opt).Encrypt(&s); err != nil {
		return "", fmt.Errorf("failed to seal password: %w", err)
	}
	return s.Password, nil
}

// Unseal reverses Seal.
func Unseal(secret, ciphertext string) (string, error) {
	opt, err := crypter(secret)
	if err != nil {
		return "", err
	}
	s := sealed{Password: ciphertext}
	if err := gocrypt.New(opt).Decrypt(&s); err != nil {
		return "", fmt.Errorf("failed to unseal password: %w", err)
	}
	return s.Password, nil
}
