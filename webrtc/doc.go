// Package webrtc provides the pion/webrtc-backed implementation of the rtc
// session abstraction.
//
// A Session wraps one RTCPeerConnection: it publishes the local capture
// source as an Opus track, decodes subscribed remote audio into PCM frames
// for level analysis, maps the peer connection's statistics report onto the
// rtc.OutboundStats surface, and derives the discrete connection quality
// pushed to the audio manager. Offer/answer and candidate exchange are left
// to the caller (see the signal package), keeping this package free of any
// particular signaling protocol.
package webrtc
