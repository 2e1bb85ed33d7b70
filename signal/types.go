// Package signal carries session negotiation between a client and the
// media service: a websocket message channel for SDP and candidate
// exchange, and signed access tokens gating room entry.
package signal

import "errors"

// Envelope message types.
const (
	TypeJoin      = "join"
	TypeOffer     = "offer"
	TypeAnswer    = "answer"
	TypeCandidate = "candidate"
	TypeBye       = "bye"
)

// Envelope is the JSON message exchanged over the signaling channel. Only
// the fields relevant to the message type are populated.
type Envelope struct {
	Type      string `json:"type"`
	Room      string `json:"room,omitempty"`
	Identity  string `json:"identity,omitempty"`
	SDP       string `json:"sdp,omitempty"`
	Candidate string `json:"candidate,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Sentinel errors for signaling operations.
var (
	// ErrClientClosed indicates an operation on a closed client.
	ErrClientClosed = errors.New("signaling client is closed")

	// ErrMissingCredentials indicates a token build without key or secret.
	ErrMissingCredentials = errors.New("api key and secret are required")
)
