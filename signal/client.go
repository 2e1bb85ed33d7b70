package signal

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const handshakeTimeout = 10 * time.Second

// Client is the websocket signaling channel to the media service. Writes
// are serialized through the client lock; reads run on a single Listen
// pump.
type Client struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	url     string
	closed  bool
	closeCh chan struct{}
	wg      sync.WaitGroup
}

// Dial connects to the signaling endpoint, presenting the access token as
// a bearer credential.
func Dial(ctx context.Context, serverURL, token string) (*Client, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := dialer.DialContext(ctx, serverURL, header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		logrus.WithFields(logrus.Fields{
			"function": "signal.Dial",
			"url":      serverURL,
			"status":   status,
			"error":    err.Error(),
		}).Error("Signaling dial failed")
		return nil, fmt.Errorf("failed to dial signaling endpoint: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "signal.Dial",
		"url":      serverURL,
	}).Info("Signaling channel connected")

	return &Client{
		conn:    conn,
		url:     serverURL,
		closeCh: make(chan struct{}),
	}, nil
}

// send writes one envelope, serialized against concurrent senders.
func (c *Client) send(env Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	if err := c.conn.WriteJSON(env); err != nil {
		return fmt.Errorf("failed to send %s: %w", env.Type, err)
	}
	return nil
}

// Join announces the participant to a room.
func (c *Client) Join(room, identity string) error {
	return c.send(Envelope{Type: TypeJoin, Room: room, Identity: identity})
}

// SendOffer forwards a local SDP offer.
func (c *Client) SendOffer(sdp string) error {
	return c.send(Envelope{Type: TypeOffer, SDP: sdp})
}

// SendAnswer forwards a local SDP answer.
func (c *Client) SendAnswer(sdp string) error {
	return c.send(Envelope{Type: TypeAnswer, SDP: sdp})
}

// SendCandidate trickles a local ICE candidate.
func (c *Client) SendCandidate(candidate string) error {
	return c.send(Envelope{Type: TypeCandidate, Candidate: candidate})
}

// Listen starts the read pump, delivering each inbound envelope to fn in
// arrival order. The pump ends when the connection drops or Close is
// called; a non-nil onClose is invoked once with the terminating error
// (nil on orderly close).
func (c *Client) Listen(fn func(Envelope), onClose func(error)) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		for {
			var env Envelope
			if err := c.conn.ReadJSON(&env); err != nil {
				c.mu.Lock()
				orderly := c.closed
				c.mu.Unlock()

				if onClose != nil {
					if orderly {
						onClose(nil)
					} else {
						onClose(err)
					}
				}
				if !orderly {
					logrus.WithFields(logrus.Fields{
						"function": "Client.Listen",
						"error":    err.Error(),
					}).Debug("Signaling read pump ended")
				}
				return
			}
			if fn != nil {
				fn(env)
			}
		}
	}()
}

// Close sends a bye, closes the connection and waits for the read pump.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn

	// Best effort: tell the peer we are leaving before tearing down.
	_ = conn.WriteJSON(Envelope{Type: TypeBye})
	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	c.mu.Unlock()

	err := conn.Close()
	c.wg.Wait()

	logrus.WithFields(logrus.Fields{
		"function": "Client.Close",
	}).Info("Signaling channel closed")

	return err
}
