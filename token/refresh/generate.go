package refresh

import (
	"crypto/rand"
	"encoding/hex"

	apperrors "github.com/jrsteele09/go-token-service/internal/errors"
	"github.com/pkg/errors"
)

// MinTokenLength is the smallest number of random bytes in a refresh token (128 bits)
const MinTokenLength = 16

// Generate returns length random bytes from the system CSPRNG, hex encoded.
// The result carries no structure and cannot be decoded into anything.
func Generate(length int) (string, error) {
	if length < MinTokenLength {
		return "", errors.Wrapf(apperrors.ErrInvalidInput, "refresh token length %d is below %d bytes", length, MinTokenLength)
	}

	tokenBytes := make([]byte, length)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", errors.Wrap(err, "refresh.Generate rand.Read")
	}
	return hex.EncodeToString(tokenBytes), nil
}
