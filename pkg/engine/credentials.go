package engine

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/awnumar/memguard"
)

// passwordAlphabet is the restricted generator alphabet. Letters and digits
// only, so credentials survive shell quoting and SQL statement embedding.
const passwordAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// DefaultPasswordLength is the generated password length.
const DefaultPasswordLength = 24

// MinPasswordLength is the lower bound accepted by the generator.
const MinPasswordLength = 16

// Credential is a generated secret tied 1:1 to a created database user. The
// password lives in a sealed enclave and is surfaced exactly once to the
// caller; the engine never persists it in plaintext.
type Credential struct {
	// Username is the database user the secret belongs to.
	Username string

	secret *memguard.Enclave
}

// GenerateCredential creates a credential with a random password of the
// given length (DefaultPasswordLength when length is zero).
func GenerateCredential(username string, length int) (*Credential, error) {
	if username == "" {
		return nil, NewOperationError("credential username is empty", nil)
	}
	if length == 0 {
		length = DefaultPasswordLength
	}
	if length < MinPasswordLength {
		return nil, NewOperationError(fmt.Sprintf("password length %d below minimum %d", length, MinPasswordLength), nil)
	}

	buf := make([]byte, length)
	max := big.NewInt(int64(len(passwordAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return nil, fmt.Errorf("failed to generate password: %w", err)
		}
		buf[i] = passwordAlphabet[n.Int64()]
	}

	// NewBufferFromBytes wipes buf.
	locked := memguard.NewBufferFromBytes(buf)
	return &Credential{
		Username: username,
		secret:   locked.Seal(),
	}, nil
}

// Password opens the enclave and returns the plaintext secret. The caller
// must treat the value as display-once.
func (c *Credential) Password() (string, error) {
	if c.secret == nil {
		return "", NewOperationError("credential has no secret", nil)
	}
	locked, err := c.secret.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open credential enclave: %w", err)
	}
	defer locked.Destroy()
	// Copy out: the locked buffer is wiped on destroy.
	return string(locked.Bytes()), nil
}

// Placeholder returns the masked rendering used by dry-run reports.
func (c *Credential) Placeholder() string {
	return fmt.Sprintf("<generated %d-char password, shown after apply>", DefaultPasswordLength)
}
