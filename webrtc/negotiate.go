package webrtc

import (
	"fmt"

	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"
)

// Offer/answer plumbing. The signal package carries these blobs between
// peers; this file only talks to the peer connection.

// CreateOffer produces a local offer and returns its SDP once ICE
// gathering completes, so the offer carries the candidate set and no
// trickle channel is required.
func (s *Session) CreateOffer() (string, error) {
	offer, err := s.pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("failed to create offer: %w", err)
	}

	gathered := webrtc.GatheringCompletePromise(s.pc)
	if err := s.pc.SetLocalDescription(offer); err != nil {
		return "", fmt.Errorf("failed to set local description: %w", err)
	}
	<-gathered

	logrus.WithFields(logrus.Fields{
		"function": "Session.CreateOffer",
	}).Debug("Offer created with gathered candidates")

	return s.pc.LocalDescription().SDP, nil
}

// HandleAnswer applies the remote answer to a previously created offer.
func (s *Session) HandleAnswer(sdp string) error {
	err := s.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  sdp,
	})
	if err != nil {
		return fmt.Errorf("failed to apply remote answer: %w", err)
	}
	return nil
}

// HandleOffer applies a remote offer and returns the local answer SDP,
// again waiting for gathering so the answer is complete.
func (s *Session) HandleOffer(sdp string) (string, error) {
	err := s.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  sdp,
	})
	if err != nil {
		return "", fmt.Errorf("failed to apply remote offer: %w", err)
	}

	answer, err := s.pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("failed to create answer: %w", err)
	}

	gathered := webrtc.GatheringCompletePromise(s.pc)
	if err := s.pc.SetLocalDescription(answer); err != nil {
		return "", fmt.Errorf("failed to set local description: %w", err)
	}
	<-gathered

	return s.pc.LocalDescription().SDP, nil
}

// AddRemoteCandidate applies a trickled remote ICE candidate.
func (s *Session) AddRemoteCandidate(candidate string) error {
	if candidate == "" {
		return nil
	}
	err := s.pc.AddICECandidate(webrtc.ICECandidateInit{Candidate: candidate})
	if err != nil {
		return fmt.Errorf("failed to add remote candidate: %w", err)
	}
	return nil
}

// OnLocalCandidate registers a handler for locally discovered ICE
// candidates, for signaling setups that trickle instead of waiting for
// complete gathering.
func (s *Session) OnLocalCandidate(fn func(candidate string)) {
	s.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil || fn == nil {
			return
		}
		fn(c.ToJSON().Candidate)
	})
}
