// Package rooms mints joinable video room URLs for confirmed appointments.
package rooms

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
)

// Minter returns an opaque, unguessable room URL for an appointment.
type Minter interface {
	Mint(ctx context.Context, appointmentID uuid.UUID) (string, error)
}

// JitsiMinter builds public meet.jit.si style rooms named by 128 random bits.
type JitsiMinter struct {
	baseURL string
	random  io.Reader
}

func NewJitsiMinter(baseURL string) *JitsiMinter {
	return &JitsiMinter{baseURL: strings.TrimRight(baseURL, "/"), random: rand.Reader}
}

func (m *JitsiMinter) Mint(_ context.Context, _ uuid.UUID) (string, error) {
	buf := make([]byte, 16)
	if _, err := io.ReadFull(m.random, buf); err != nil {
		return "", fmt.Errorf("rooms: read random: %w", err)
	}
	return m.baseURL + "/" + hex.EncodeToString(buf), nil
}
