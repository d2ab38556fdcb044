package util

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// GenerateOrderNumber builds a human-readable order number from the current
// UTC time plus a 4-digit cryptographic random suffix. Uniqueness is enforced
// by the database; callers regenerate on collision.
func GenerateOrderNumber() string {
	now := time.Now().UTC()

	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		n = big.NewInt(now.UnixNano() % 10000)
	}

	return fmt.Sprintf("ORD-%s-%04d", now.Format("20060102-150405"), n.Int64())
}
