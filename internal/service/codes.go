package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	confirmationAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	confirmationLength   = 8
)

// newConfirmationCode generates the human-facing code printed on tickets,
// 8 uppercase alphanumerics.
func newConfirmationCode() (string, error) {
	buf := make([]byte, confirmationLength)
	max := big.NewInt(int64(len(confirmationAlphabet)))

	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate confirmation code: %w", err)
		}
		buf[i] = confirmationAlphabet[n.Int64()]
	}

	return string(buf), nil
}

// ticketCode derives the globally unique per-ticket code from the order's
// confirmation code and the 1-based sequence within the order.
func ticketCode(confirmationCode string, seq int) string {
	return fmt.Sprintf("%s-%d", confirmationCode, seq)
}

// qrSigner produces the signed payload embedded in ticket QR codes so
// gate scanners can verify tickets offline.
type qrSigner struct {
	secret []byte
}

func newQRSigner(secret string) *qrSigner {
	return &qrSigner{secret: []byte(secret)}
}

func (s *qrSigner) Sign(orderID, code string, seq int, issuedAt time.Time) (string, error) {
	claims := jwt.MapClaims{
		"order_id": orderID,
		"code":     code,
		"seq":      seq,
		"iat":      issuedAt.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign QR payload: %w", err)
	}

	return signed, nil
}
