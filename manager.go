package voicesession

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vtutor/voicesession/level"
	"github.com/vtutor/voicesession/quality"
	"github.com/vtutor/voicesession/rtc"
)

// AudioManager is the session-scoped audio controller: it owns the local
// capture track, the 1 Hz quality sampler and the remote level meter for
// exactly one transport session at a time.
//
// Lifecycle: Initialize binds a session and publishes the local track;
// Cleanup is the single cancellation point and must be called before the
// manager is dropped or re-initialized. Control operations invoked before
// Initialize or after Cleanup degrade to safe no-ops returning
// ErrNoLocalTrack, so UI components can mount ahead of session readiness.
type AudioManager struct {
	mu sync.RWMutex

	config  AudioConfig
	devices rtc.DeviceEnumerator

	session rtc.Session
	local   rtc.LocalTrack
	remote  rtc.RemoteTrack

	sampler *quality.Sampler
	meter   *level.Meter

	pushToTalk  bool
	initialized bool
}

// NewAudioManager creates a manager with the given configuration. The
// config is merged with defaults and fixed for the manager's lifetime.
// devices may be nil, in which case ListAudioDevices reports no devices.
func NewAudioManager(config AudioConfig, devices rtc.DeviceEnumerator) *AudioManager {
	resolved := config.normalize()

	logrus.WithFields(logrus.Fields{
		"function":    "NewAudioManager",
		"sample_rate": resolved.SampleRate,
		"bit_rate":    resolved.BitRate,
	}).Info("Creating audio manager")

	return &AudioManager{
		config:  resolved,
		devices: devices,
		sampler: quality.NewSampler(quality.DefaultSampleInterval),
		meter:   level.NewMeter(level.DefaultRefreshInterval),
	}
}

// Initialize binds the session, registers event handlers and publishes the
// local capture track with the configured options.
//
// Device-acquisition failures (permission denied, no device) propagate to
// the caller and are not retried; the manager stays uninitialized and
// GetMetrics keeps returning the zeroed default snapshot. Re-initializing
// a bound manager returns ErrAlreadyInitialized.
func (m *AudioManager) Initialize(ctx context.Context, session rtc.Session) error {
	if session == nil {
		return ErrNoSession
	}

	// Claim the binding before registering handlers: sessions may redeliver
	// an already-subscribed remote track synchronously from within
	// OnTrackSubscribed, and that delivery must find a bound manager. The
	// claim also keeps a concurrent Initialize from passing the reentrancy
	// check while this one is still publishing.
	m.mu.Lock()
	if m.initialized {
		m.mu.Unlock()
		return ErrAlreadyInitialized
	}
	m.initialized = true
	m.session = session
	m.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "AudioManager.Initialize",
	}).Info("Initializing audio session")

	session.OnTrackSubscribed(m.handleTrackSubscribed)
	session.OnConnectionQualityChanged(m.handleQualityChanged)
	session.OnDisconnected(m.handleDisconnected)

	local, err := session.PublishAudio(ctx, m.config.constraints(""))
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "AudioManager.Initialize",
			"error":    err.Error(),
		}).Error("Local audio acquisition failed")
		m.unwindBinding(session)
		return fmt.Errorf("failed to publish local audio: %w", err)
	}

	m.mu.Lock()
	if !m.initialized || m.session != session {
		// Cleanup ran while the publish was in flight; the acquired track
		// must not outlive the released binding.
		m.mu.Unlock()
		if stopErr := local.Stop(); stopErr != nil {
			logrus.WithFields(logrus.Fields{
				"function": "AudioManager.Initialize",
				"error":    stopErr.Error(),
			}).Warn("Failed to stop track acquired after cleanup")
		}
		return fmt.Errorf("session released during initialization: %w", rtc.ErrSessionClosed)
	}
	m.local = local
	pushToTalk := m.pushToTalk
	m.mu.Unlock()

	m.sampler.SetLevelFunc(m.meter.Level)
	m.sampler.Bind(session)

	// Push-to-talk enabled ahead of initialization starts the track muted.
	if pushToTalk {
		if err := local.SetMuted(true); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "AudioManager.Initialize",
				"error":    err.Error(),
			}).Warn("Failed to apply initial push-to-talk mute")
		}
	}

	logrus.WithFields(logrus.Fields{
		"function": "AudioManager.Initialize",
		"track_id": local.ID(),
	}).Info("Audio session initialized")

	return nil
}

// unwindBinding reverts a claimed binding after a failed publish. Any
// meter attachment made by a synchronously redelivered remote track is
// undone so the manager is left exactly as uninitialized as before.
func (m *AudioManager) unwindBinding(session rtc.Session) {
	m.mu.Lock()
	if m.session != session {
		m.mu.Unlock()
		return
	}
	m.session = nil
	m.remote = nil
	m.initialized = false
	m.mu.Unlock()

	m.meter.Stop()
}

// localTrack returns the bound local track, or nil when the manager is not
// (or no longer) initialized.
func (m *AudioManager) localTrack() rtc.LocalTrack {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.local
}

// ToggleMute flips the published state of the local track. The change is
// visible to remote participants. With no local track bound this is a safe
// no-op returning ErrNoLocalTrack.
func (m *AudioManager) ToggleMute() error {
	local := m.localTrack()
	if local == nil {
		return ErrNoLocalTrack
	}

	muted := !local.IsMuted()
	if err := local.SetMuted(muted); err != nil {
		return fmt.Errorf("failed to toggle mute: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "AudioManager.ToggleMute",
		"muted":    muted,
	}).Debug("Local track mute toggled")

	return nil
}

// IsMuted reports the published state of the local track. An unbound
// manager reports true.
func (m *AudioManager) IsMuted() bool {
	local := m.localTrack()
	if local == nil {
		return true
	}
	return local.IsMuted()
}

// EnablePushToTalk switches push-to-talk mode. Enabling it mutes the local
// track immediately; the track then opens only while PushToTalkPress is
// held. Disabling restores normal toggle behavior and unmutes.
func (m *AudioManager) EnablePushToTalk(enabled bool) error {
	m.mu.Lock()
	m.pushToTalk = enabled
	local := m.local
	m.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "AudioManager.EnablePushToTalk",
		"enabled":  enabled,
	}).Info("Push-to-talk mode changed")

	if local == nil {
		return ErrNoLocalTrack
	}
	return local.SetMuted(enabled)
}

// PushToTalkPress opens the local track while the control is held.
// A safe no-op without push-to-talk mode or a bound track.
func (m *AudioManager) PushToTalkPress() error {
	m.mu.RLock()
	enabled := m.pushToTalk
	local := m.local
	m.mu.RUnlock()

	if !enabled || local == nil {
		return ErrNoLocalTrack
	}
	return local.SetMuted(false)
}

// PushToTalkRelease closes the local track when the control is released.
// A safe no-op without push-to-talk mode or a bound track.
func (m *AudioManager) PushToTalkRelease() error {
	m.mu.RLock()
	enabled := m.pushToTalk
	local := m.local
	m.mu.RUnlock()

	if !enabled || local == nil {
		return ErrNoLocalTrack
	}
	return local.SetMuted(true)
}

// SetAudioDevice swaps the underlying capture device on the existing
// track. Fails with rtc.ErrDeviceNotFound for an invalid id. A safe no-op
// returning ErrNoLocalTrack when no track is bound.
func (m *AudioManager) SetAudioDevice(deviceID string) error {
	local := m.localTrack()
	if local == nil {
		return ErrNoLocalTrack
	}

	if err := local.SetDevice(deviceID); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":  "AudioManager.SetAudioDevice",
			"device_id": deviceID,
			"error":     err.Error(),
		}).Error("Device switch failed")
		return fmt.Errorf("failed to switch audio device: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function":  "AudioManager.SetAudioDevice",
		"device_id": deviceID,
	}).Info("Audio device switched")

	return nil
}

// ListAudioDevices returns the current set of input devices reported by
// the host platform. Pure query, no side effects. Without an enumerator it
// returns an empty list.
func (m *AudioManager) ListAudioDevices() ([]rtc.DeviceInfo, error) {
	m.mu.RLock()
	devices := m.devices
	m.mu.RUnlock()

	if devices == nil {
		return []rtc.DeviceInfo{}, nil
	}
	return devices.ListAudioDevices()
}

// SetVolume accepts a playback volume level in [0,1] but has no effect:
// the underlying transport does not support remote volume control from
// this layer. The request is logged and dropped rather than silently
// pretended to work.
func (m *AudioManager) SetVolume(volume float64) error {
	if volume < 0 {
		volume = 0
	} else if volume > 1 {
		volume = 1
	}

	logrus.WithFields(logrus.Fields{
		"function": "AudioManager.SetVolume",
		"volume":   volume,
	}).Warn("SetVolume is not supported by the transport, request ignored")

	return nil
}

// GetMetrics returns a copy of the latest quality snapshot. Before
// initialization (or after a failed Initialize) this is the zeroed default
// snapshot.
func (m *AudioManager) GetMetrics() quality.Metrics {
	return m.sampler.Snapshot()
}

// GetVolumeLevel returns the normalized instantaneous loudness of the
// remote audio signal in [0,1].
func (m *AudioManager) GetVolumeLevel() float64 {
	return m.meter.Level()
}

// Subscribe registers a listener receiving the metrics snapshot on each
// sampling tick and returns its unsubscribe function.
func (m *AudioManager) Subscribe(fn func(quality.Metrics)) func() {
	return m.sampler.Subscribe(fn)
}

// handleTrackSubscribed rebinds the remote audio track and attaches the
// level meter. Non-audio tracks are ignored. Arrivals after Cleanup are
// no-ops.
func (m *AudioManager) handleTrackSubscribed(track rtc.RemoteTrack) {
	if track == nil || track.Kind() != rtc.TrackKindAudio {
		return
	}

	m.mu.Lock()
	if !m.initialized {
		m.mu.Unlock()
		return
	}
	m.remote = track
	m.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "AudioManager.handleTrackSubscribed",
		"track_id": track.ID(),
	}).Info("Remote audio track subscribed")

	m.meter.Attach(track)
}

// handleQualityChanged applies transport-pushed quality changes to the
// snapshot immediately, in emission order.
func (m *AudioManager) handleQualityChanged(q rtc.ConnectionQuality) {
	m.mu.RLock()
	bound := m.initialized
	m.mu.RUnlock()
	if !bound {
		return
	}
	m.sampler.SetConnectionQuality(q)
}

// handleDisconnected releases the session binding. Reconnection is the
// transport's responsibility, not this layer's.
func (m *AudioManager) handleDisconnected(reason string) {
	logrus.WithFields(logrus.Fields{
		"function": "AudioManager.handleDisconnected",
		"reason":   reason,
	}).Info("Session disconnected, releasing audio bindings")

	m.Cleanup()
}

// Cleanup is the single cancellation point. It stops the local track,
// cancels the level metering loop, clears the sampler binding and drops
// all references, leaving the manager safe to drop or re-initialize.
// In-flight asynchronous completions become no-ops on arrival. Cleanup on
// an unbound manager is harmless.
func (m *AudioManager) Cleanup() {
	m.mu.Lock()
	local := m.local
	m.session = nil
	m.local = nil
	m.remote = nil
	wasInitialized := m.initialized
	m.initialized = false
	m.mu.Unlock()

	if local != nil {
		if err := local.Stop(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "AudioManager.Cleanup",
				"error":    err.Error(),
			}).Warn("Failed to stop local track")
		}
	}

	m.meter.Stop()
	m.sampler.Unbind()

	if wasInitialized {
		logrus.WithFields(logrus.Fields{
			"function": "AudioManager.Cleanup",
		}).Info("Audio session cleaned up")
	}
}

// WaitForSamplerStop blocks until the sampling timer has observed the
// cleared binding and stopped, or the timeout elapses. Intended for
// orderly shutdown paths that want the timer gone before process exit.
func (m *AudioManager) WaitForSamplerStop(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for m.sampler.Running() {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(10 * time.Millisecond)
	}
	return true
}
