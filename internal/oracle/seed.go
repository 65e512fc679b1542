package oracle

import (
	"context"
	"crypto/rand"
	"encoding/binary"
)

// SeedSource produces the seeds an oracle answers randomness requests with.
type SeedSource interface {
	Seed(ctx context.Context) (uint64, error)
}

// CryptoSeed reads seeds from the operating system's random source.
type CryptoSeed struct{}

func (CryptoSeed) Seed(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}
