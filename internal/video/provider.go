package video

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// EmbeddedRoomProvider names rooms deterministically for the built-in WebRTC
// signalling path. No external API call is involved, so creation cannot fail
// and retries are naturally idempotent.
type EmbeddedRoomProvider struct {
	prefix string
}

func NewEmbeddedRoomProvider(prefix string) *EmbeddedRoomProvider {
	if prefix == "" {
		prefix = "sprout"
	}
	return &EmbeddedRoomProvider{prefix: prefix}
}

func (p *EmbeddedRoomProvider) CreateRoom(_ context.Context, appointmentID uuid.UUID) (string, error) {
	return fmt.Sprintf("%s-%s", p.prefix, appointmentID.String()), nil
}

func (p *EmbeddedRoomProvider) Name() string { return "embedded" }
