// Package voicesession manages the audio side of a real-time tutoring
// session: local capture and publishing, push-to-talk, device switching,
// 1 Hz quality sampling and remote level metering.
//
// The AudioManager is the single entry point. It binds to one transport
// session at a time (see the rtc package for the abstraction and the
// webrtc package for the pion-backed implementation):
//
//	mgr := voicesession.NewAudioManager(voicesession.DefaultAudioConfig(), provider)
//	if err := mgr.Initialize(ctx, session); err != nil {
//	    log.Fatalf("audio init: %v", err)
//	}
//	defer mgr.Cleanup()
//
//	unsubscribe := mgr.Subscribe(func(m quality.Metrics) {
//	    fmt.Printf("%s rtt=%v loss=%.1f%%\n", quality.Assess(m, nil), m.Latency, m.PacketLoss)
//	})
//	defer unsubscribe()
//
// Control operations called before Initialize or after Cleanup are safe
// no-ops returning ErrNoLocalTrack, so UI layers can wire controls without
// sequencing against session readiness.
package voicesession
