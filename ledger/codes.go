/*
codes.go - Cryptographically secure code generation

PURPOSE:
  Generates every code that represents money or identifies a financial
  record: voucher codes, PINs, electricity tokens, reference numbers.
  All randomness comes from crypto/rand; math/rand is never acceptable
  for values an attacker could profit from guessing.

FORMATS:
  Voucher code:  16 digits, dash-grouped in 4s  (1234-5678-9012-3456)
  PIN:           4-6 digits (default 6)
  Token:         20 digits, dash-grouped in 4s
  Reference:     PREFIX-yyyymmdd-DDDDDD        (WD-20260829-493817)

UNIQUENESS:
  Unique* variants take an ExistsFunc callback and retry up to
  MaxAttempts times before returning ErrCodeGenerationExhausted.
  The callback checks the store; the generator itself is stateless.

SEE ALSO:
  - payments: Consumes voucher codes, tokens, references
*/
package ledger

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// =============================================================================
// CODE GENERATOR
// =============================================================================

const (
	VoucherCodeDigits = 16
	TokenDigits       = 20
	DefaultPINLength  = 6
	ReferenceDigits   = 6
)

// ExistsFunc reports whether a generated code is already taken.
type ExistsFunc func(ctx context.Context, code string) (bool, error)

type CodeGenerator struct {
	MaxAttempts int
}

func NewCodeGenerator() *CodeGenerator {
	return &CodeGenerator{MaxAttempts: 10}
}

// Digits returns n cryptographically random decimal digits.
func (g *CodeGenerator) Digits(n int) (string, error) {
	var sb strings.Builder
	sb.Grow(n)
	ten := big.NewInt(10)
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("failed to read random digit: %w", err)
		}
		sb.WriteByte(byte('0' + d.Int64()))
	}
	return sb.String(), nil
}

// PIN returns a random PIN of the given length (4-6 digits).
func (g *CodeGenerator) PIN(length int) (string, error) {
	if length < 4 || length > 6 {
		length = DefaultPINLength
	}
	return g.Digits(length)
}

// VoucherCode returns a 16-digit code grouped in 4s.
func (g *CodeGenerator) VoucherCode() (string, error) {
	digits, err := g.Digits(VoucherCodeDigits)
	if err != nil {
		return "", err
	}
	return groupDigits(digits, 4), nil
}

// Token returns a 20-digit electricity token grouped in 4s.
func (g *CodeGenerator) Token() (string, error) {
	digits, err := g.Digits(TokenDigits)
	if err != nil {
		return "", err
	}
	return groupDigits(digits, 4), nil
}

// Reference returns "PREFIX-yyyymmdd-DDDDDD" for the given time.
func (g *CodeGenerator) Reference(prefix string, at time.Time) (string, error) {
	digits, err := g.Digits(ReferenceDigits)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-%s", prefix, at.Format("20060102"), digits), nil
}

// UniqueVoucherCode generates a voucher code not yet present in the store.
func (g *CodeGenerator) UniqueVoucherCode(ctx context.Context, exists ExistsFunc) (string, error) {
	return g.unique(ctx, exists, g.VoucherCode)
}

// UniqueToken generates an electricity token not yet present in the store.
func (g *CodeGenerator) UniqueToken(ctx context.Context, exists ExistsFunc) (string, error) {
	return g.unique(ctx, exists, g.Token)
}

// UniqueReference generates a reference number not yet present in the store.
func (g *CodeGenerator) UniqueReference(ctx context.Context, prefix string, at time.Time, exists ExistsFunc) (string, error) {
	return g.unique(ctx, exists, func() (string, error) {
		return g.Reference(prefix, at)
	})
}

func (g *CodeGenerator) unique(ctx context.Context, exists ExistsFunc, gen func() (string, error)) (string, error) {
	attempts := g.MaxAttempts
	if attempts <= 0 {
		attempts = 10
	}
	for i := 0; i < attempts; i++ {
		code, err := gen()
		if err != nil {
			return "", err
		}
		taken, err := exists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", ErrCodeGenerationExhausted
}

func groupDigits(digits string, group int) string {
	var sb strings.Builder
	for i, r := range digits {
		if i > 0 && i%group == 0 {
			sb.WriteByte('-')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// NewID returns a random record identifier like "txn-9f2c4a1b8d3e".
// IDs are opaque; references are the human-facing identifiers.
func NewID(prefix string) string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand read failure means the platform is broken;
		// fall back to a time-based ID rather than panic.
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%x", prefix, buf)
}
