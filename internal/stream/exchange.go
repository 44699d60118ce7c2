// Package stream manages live exchange feeds: one Connector per configured
// exchange dials a websocket endpoint, subscribes, and pushes accepted ticks
// through a rate-limited sink. Connectors run independently of the scheduler
// tick loop.
package stream

import "crypto-collector/internal/domain"

// Exchange adapts one exchange's wire protocol: endpoint shaping,
// subscribe/unsubscribe payloads and tick parsing.
type Exchange interface {
	Name() string
	// Endpoint derives the dial URL from a configured base URL.
	Endpoint(base string) string
	SubscribePayload() ([]byte, error)
	UnsubscribePayload() ([]byte, error)
	// ParseTick extracts a trade tick from one inbound message. ok is false
	// for valid non-tick messages (heartbeats, acks); err is set for
	// malformed payloads.
	ParseTick(message []byte) (tick domain.TradeTick, ok bool, err error)
}
