package dispatch

import "context"

// Message is a rendered notification. Subject is only meaningful for
// channels that have one (email); the others send Body alone.
type Message struct {
	Subject string
	Body    string
}

// Provider sends a rendered message to one address on one channel.
// Implementations classify failures into domain.ErrProviderUnavailable
// (retryable) or domain.ErrPermanentDelivery; raw provider codes never
// cross this boundary.
type Provider interface {
	Send(ctx context.Context, address string, msg Message) error
}
