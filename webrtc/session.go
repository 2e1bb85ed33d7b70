package webrtc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"

	"github.com/vtutor/voicesession/rtc"
)

// qualityMonitorInterval is how often the session re-derives the discrete
// connection quality from the statistics report.
const qualityMonitorInterval = 2 * time.Second

// Config holds the transport configuration for a session.
type Config struct {
	// STUNServers are STUN server URLs added to the ICE configuration.
	STUNServers []string

	// TURNServers are TURN servers with credentials.
	TURNServers []TURNServer

	// ReceiveMTU sizes the mux read buffer. Zero uses 16384, which avoids
	// short-buffer read failures on large compound packets.
	ReceiveMTU uint
}

// TURNServer describes one TURN server entry.
type TURNServer struct {
	URLs       []string
	Username   string
	Credential string
}

// Session is a pion-backed rtc.Session bound to a single peer connection.
type Session struct {
	mu sync.RWMutex

	pc      *webrtc.PeerConnection
	capture rtc.CaptureProvider

	local  *localTrack
	remote *remoteTrack

	onTrack      func(rtc.RemoteTrack)
	onQuality    func(rtc.ConnectionQuality)
	onDisconnect func(string)

	lastQuality  rtc.ConnectionQuality
	disconnected bool
	closed       bool

	monitorStop chan struct{}
}

// NewSession creates a peer connection with the given configuration. The
// capture provider supplies local devices for PublishAudio; it may be nil
// for receive-only sessions.
func NewSession(cfg Config, capture rtc.CaptureProvider) (*Session, error) {
	rtcConfig := webrtc.Configuration{}
	for _, url := range cfg.STUNServers {
		rtcConfig.ICEServers = append(rtcConfig.ICEServers, webrtc.ICEServer{
			URLs: []string{url},
		})
	}
	for _, turn := range cfg.TURNServers {
		rtcConfig.ICEServers = append(rtcConfig.ICEServers, webrtc.ICEServer{
			URLs:       turn.URLs,
			Username:   turn.Username,
			Credential: turn.Credential,
		})
	}

	mtu := cfg.ReceiveMTU
	if mtu == 0 {
		mtu = 16384
	}

	se := webrtc.SettingEngine{}
	se.SetReceiveMTU(mtu)
	se.SetSRTPReplayProtectionWindow(1024)

	api := webrtc.NewAPI(webrtc.WithSettingEngine(se))
	pc, err := api.NewPeerConnection(rtcConfig)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "NewSession",
			"error":    err.Error(),
		}).Error("Failed to create peer connection")
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	s := &Session{
		pc:          pc,
		capture:     capture,
		lastQuality: rtc.QualityUnknown,
		monitorStop: make(chan struct{}),
	}

	pc.OnTrack(func(remote *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		s.handleRemoteTrack(remote)
	})
	pc.OnICEConnectionStateChange(s.handleICEStateChange)
	pc.OnConnectionStateChange(s.handleConnectionStateChange)

	go s.monitorQuality()

	logrus.WithFields(logrus.Fields{
		"function":     "NewSession",
		"stun_servers": len(cfg.STUNServers),
		"turn_servers": len(cfg.TURNServers),
	}).Info("WebRTC session created")

	return s, nil
}

// OnTrackSubscribed registers the remote track handler. A track already
// subscribed at registration time is delivered immediately.
func (s *Session) OnTrackSubscribed(fn func(rtc.RemoteTrack)) {
	s.mu.Lock()
	s.onTrack = fn
	remote := s.remote
	s.mu.Unlock()

	if fn != nil && remote != nil {
		fn(remote)
	}
}

// OnConnectionQualityChanged registers the quality change handler.
func (s *Session) OnConnectionQualityChanged(fn func(rtc.ConnectionQuality)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onQuality = fn
}

// OnDisconnected registers the disconnect handler.
func (s *Session) OnDisconnected(fn func(string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDisconnect = fn
}

// PublishAudio acquires a capture source for the constrained device and
// publishes it as an Opus track. Acquisition errors propagate unretried.
func (s *Session) PublishAudio(ctx context.Context, constraints rtc.CaptureConstraints) (rtc.LocalTrack, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, rtc.ErrSessionClosed
	}
	if s.capture == nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("no capture provider: %w", rtc.ErrDeviceNotFound)
	}
	capture := s.capture
	s.mu.Unlock()

	source, err := capture.Open(constraints)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":  "Session.PublishAudio",
			"device_id": constraints.DeviceID,
			"error":     err.Error(),
		}).Error("Capture device acquisition failed")
		return nil, fmt.Errorf("failed to acquire capture device: %w", err)
	}

	track, err := newLocalTrack(source, capture, constraints)
	if err != nil {
		source.Close()
		return nil, err
	}

	sender, err := s.pc.AddTrack(track.sample)
	if err != nil {
		track.Stop()
		return nil, fmt.Errorf("failed to add track to peer connection: %w", err)
	}
	track.sender = sender

	s.mu.Lock()
	s.local = track
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":    "Session.PublishAudio",
		"track_id":    track.ID(),
		"device_id":   source.DeviceID(),
		"sample_rate": constraints.SampleRate,
	}).Info("Local audio track published")

	return track, nil
}

// handleRemoteTrack wraps an incoming audio track and starts its decode
// pump. Non-audio tracks are ignored.
func (s *Session) handleRemoteTrack(track *webrtc.TrackRemote) {
	if track.Kind() != webrtc.RTPCodecTypeAudio {
		logrus.WithFields(logrus.Fields{
			"function": "Session.handleRemoteTrack",
			"kind":     track.Kind().String(),
		}).Debug("Ignoring non-audio remote track")
		return
	}

	remote := newRemoteTrack(track)

	s.mu.Lock()
	if s.remote != nil {
		s.remote.stop()
	}
	s.remote = remote
	fn := s.onTrack
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Session.handleRemoteTrack",
		"track_id": remote.ID(),
	}).Info("Remote audio track subscribed")

	if fn != nil {
		fn(remote)
	}
}

// handleICEStateChange reacts to ICE transitions: degraded states push a
// quality change immediately rather than waiting for the monitor tick.
func (s *Session) handleICEStateChange(state webrtc.ICEConnectionState) {
	logrus.WithFields(logrus.Fields{
		"function": "Session.handleICEStateChange",
		"state":    state.String(),
	}).Debug("ICE connection state changed")

	switch state {
	case webrtc.ICEConnectionStateDisconnected, webrtc.ICEConnectionStateFailed:
		s.setQuality(rtc.QualityPoor)
	}
}

// handleConnectionStateChange fires the disconnect handler once when the
// peer connection reaches a terminal state.
func (s *Session) handleConnectionStateChange(state webrtc.PeerConnectionState) {
	logrus.WithFields(logrus.Fields{
		"function": "Session.handleConnectionStateChange",
		"state":    state.String(),
	}).Debug("Peer connection state changed")

	switch state {
	case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
		s.mu.Lock()
		already := s.disconnected
		s.disconnected = true
		fn := s.onDisconnect
		s.mu.Unlock()

		if !already && fn != nil {
			fn(state.String())
		}
	}
}

// monitorQuality periodically derives the discrete connection quality from
// the statistics report and pushes changes to the registered handler.
func (s *Session) monitorQuality() {
	ticker := time.NewTicker(qualityMonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.monitorStop:
			return
		case <-ticker.C:
			stats, err := s.Stats()
			if err != nil {
				continue
			}
			s.setQuality(deriveQuality(stats))
		}
	}
}

// setQuality records the quality bucket and notifies on change, preserving
// emission order through the session lock.
func (s *Session) setQuality(q rtc.ConnectionQuality) {
	s.mu.Lock()
	if s.closed || q == s.lastQuality {
		s.mu.Unlock()
		return
	}
	previous := s.lastQuality
	s.lastQuality = q
	fn := s.onQuality
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Session.setQuality",
		"previous": previous.String(),
		"current":  q.String(),
	}).Debug("Connection quality changed")

	if fn != nil {
		fn(q)
	}
}

// deriveQuality buckets raw outbound statistics into the discrete quality
// levels reported to the manager. An all-zero report means no traffic has
// flowed yet, so the quality stays unknown rather than reading as a clean
// link.
func deriveQuality(stats rtc.OutboundStats) rtc.ConnectionQuality {
	if stats.PacketsSent == 0 && stats.RoundTripTime == 0 {
		return rtc.QualityUnknown
	}

	loss := 0.0
	if stats.PacketsSent > 0 {
		loss = float64(stats.PacketsLost) / float64(stats.PacketsSent) * 100.0
	}

	switch {
	case loss < 1.0 && stats.RoundTripTime < 100*time.Millisecond:
		return rtc.QualityExcellent
	case loss < 3.0 && stats.RoundTripTime < 250*time.Millisecond:
		return rtc.QualityGood
	default:
		return rtc.QualityPoor
	}
}

// Stats maps the peer connection's statistics report onto the outbound
// audio surface. Statistics the report does not carry stay zero.
func (s *Session) Stats() (rtc.OutboundStats, error) {
	s.mu.RLock()
	pc := s.pc
	closed := s.closed
	s.mu.RUnlock()

	if closed {
		return rtc.OutboundStats{}, rtc.ErrSessionClosed
	}
	return collectOutboundStats(pc.GetStats()), nil
}

// Close tears down the peer connection, the quality monitor and both
// track pumps.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	local := s.local
	remote := s.remote
	s.local = nil
	s.remote = nil
	close(s.monitorStop)
	s.mu.Unlock()

	if local != nil {
		local.Stop()
	}
	if remote != nil {
		remote.stop()
	}

	err := s.pc.Close()

	logrus.WithFields(logrus.Fields{
		"function": "Session.Close",
	}).Info("WebRTC session closed")

	return err
}
