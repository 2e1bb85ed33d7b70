// Package rtc defines the transport abstractions consumed by the audio
// session manager.
//
// The package decouples the manager from any particular real-time transport
// implementation. A Session represents one connection to a media room and
// surfaces the three event streams the manager cares about (remote track
// subscription, connection quality changes, disconnection) plus an outbound
// statistics query surface. Local capture is abstracted behind
// CaptureProvider so the same manager code works against real devices and
// deterministic test sources.
//
// The concrete pion/webrtc implementation lives in the webrtc package.
package rtc
