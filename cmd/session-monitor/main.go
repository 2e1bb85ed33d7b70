// session-monitor joins a voice room, publishes a synthetic audio track
// and prints one line of connection quality metrics per second until
// interrupted.
package main

import (
	"context"
	"fmt"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/vtutor/voicesession"
	"github.com/vtutor/voicesession/quality"
	"github.com/vtutor/voicesession/signal"
	"github.com/vtutor/voicesession/webrtc"
)

func main() {
	var (
		serverURL = pflag.String("url", "ws://127.0.0.1:7880/signal", "signaling endpoint")
		apiKey    = pflag.String("api-key", "", "API key for the access token")
		apiSecret = pflag.String("api-secret", "", "API secret for the access token")
		room      = pflag.String("room", "tutoring", "room to join")
		identity  = pflag.String("identity", "monitor", "participant identity")
		stun      = pflag.StringSlice("stun", []string{"stun:stun.l.google.com:19302"}, "STUN server URLs")
		toneFreq  = pflag.Float64("tone-freq", 440, "frequency of the published test tone in Hz")
		verbose   = pflag.Bool("verbose", false, "enable debug logging")
	)
	pflag.Parse()

	logrus.SetLevel(logrus.WarnLevel)
	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if err := run(*serverURL, *apiKey, *apiSecret, *room, *identity, *stun, *toneFreq); err != nil {
		fmt.Fprintf(os.Stderr, "session-monitor: %v\n", err)
		os.Exit(1)
	}
}

func run(serverURL, apiKey, apiSecret, room, identity string, stun []string, toneFreq float64) error {
	token, err := signal.NewAccessToken(apiKey, apiSecret).
		SetIdentity(identity).
		SetRoom(room).
		SetCanPublish(true).
		SetCanSubscribe(true).
		ToJWT()
	if err != nil {
		return fmt.Errorf("failed to build access token: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := signal.Dial(ctx, serverURL, token)
	if err != nil {
		return err
	}
	defer client.Close()

	session, err := webrtc.NewSession(webrtc.Config{STUNServers: stun},
		&webrtc.ToneProvider{Frequency: toneFreq})
	if err != nil {
		return err
	}
	defer session.Close()

	// Trickle local candidates out; feed remote SDP and candidates in.
	session.OnLocalCandidate(func(candidate string) {
		if err := client.SendCandidate(candidate); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "run",
				"error":    err.Error(),
			}).Debug("Failed to send candidate")
		}
	})

	closed := make(chan struct{})
	client.Listen(func(env signal.Envelope) {
		switch env.Type {
		case signal.TypeAnswer:
			if err := session.HandleAnswer(env.SDP); err != nil {
				logrus.WithError(err).Warn("Failed to apply answer")
			}
		case signal.TypeOffer:
			answer, err := session.HandleOffer(env.SDP)
			if err != nil {
				logrus.WithError(err).Warn("Failed to answer offer")
				return
			}
			if err := client.SendAnswer(answer); err != nil {
				logrus.WithError(err).Warn("Failed to send answer")
			}
		case signal.TypeCandidate:
			if err := session.AddRemoteCandidate(env.Candidate); err != nil {
				logrus.WithError(err).Debug("Failed to add remote candidate")
			}
		case signal.TypeBye:
			fmt.Println("Peer left the room")
		}
	}, func(err error) {
		if err != nil {
			fmt.Fprintf(os.Stderr, "signaling closed: %v\n", err)
		}
		close(closed)
	})

	if err := client.Join(room, identity); err != nil {
		return err
	}

	provider := &webrtc.ToneProvider{Frequency: toneFreq}
	manager := voicesession.NewAudioManager(voicesession.DefaultAudioConfig(), provider)
	if err := manager.Initialize(ctx, session); err != nil {
		return fmt.Errorf("failed to initialize audio manager: %w", err)
	}
	defer manager.Cleanup()

	offer, err := session.CreateOffer()
	if err != nil {
		return err
	}
	if err := client.SendOffer(offer); err != nil {
		return err
	}

	unsubscribe := manager.Subscribe(func(m quality.Metrics) {
		fmt.Printf("%s  quality=%-9s latency=%-8s loss=%5.2f%%  jitter=%-8s level=%.2f\n",
			m.Timestamp.Format("15:04:05"),
			quality.Assess(m, nil),
			m.Latency.Round(time.Millisecond),
			m.PacketLoss,
			m.Jitter.Round(time.Millisecond),
			m.AudioLevel)
	})
	defer unsubscribe()

	fmt.Printf("Joined %q as %q, monitoring (Ctrl-C to stop)\n", room, identity)

	interrupt := make(chan os.Signal, 1)
	ossignal.Notify(interrupt, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-interrupt:
		fmt.Println("\nShutting down")
	case <-closed:
	}
	return nil
}
