package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt truncates input past this many bytes.
const MaxPasswordBytes = 72

const defaultCost = 12

// ErrInvalidPassword means the password did not match the stored hash.
var ErrInvalidPassword = errors.New("auth: invalid password")

// PasswordService hashes and checks bcrypt passwords. The cost is a field so
// tests can run at bcrypt.MinCost.
type PasswordService struct {
	cost int
	// dummy is compared against when the account does not exist, so a
	// login for an unknown email costs the same as a wrong password.
	dummy []byte
}

// NewPasswordService hashes at cost 12.
func NewPasswordService() *PasswordService {
	return newPasswordService(defaultCost)
}

// NewPasswordServiceForTest uses the given (low) cost. Not for production.
func NewPasswordServiceForTest(cost int) *PasswordService {
	return newPasswordService(cost)
}

func newPasswordService(cost int) *PasswordService {
	dummy, err := bcrypt.GenerateFromPassword([]byte("civic-complaints-dummy"), cost)
	if err != nil {
		panic(fmt.Sprintf("auth: bcrypt cost %d: %v", cost, err))
	}
	return &PasswordService{cost: cost, dummy: dummy}
}

// Hash returns the bcrypt hash of plaintext.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > MaxPasswordBytes {
		return "", fmt.Errorf("auth: password must be %d bytes or fewer", MaxPasswordBytes)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}
	return string(hashed), nil
}

// Verify returns nil on a match and ErrInvalidPassword on a mismatch.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return ErrInvalidPassword
	default:
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
}

// VerifyNone burns one comparison's worth of time and always fails.
func (p *PasswordService) VerifyNone(plaintext string) error {
	_ = bcrypt.CompareHashAndPassword(p.dummy, []byte(plaintext))
	return ErrInvalidPassword
}
