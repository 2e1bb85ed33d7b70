// Package level estimates the instantaneous loudness of a remote audio
// track for visual feedback.
//
// An Analyser keeps the most recent window of PCM samples and exposes
// byte-scaled frequency-bin magnitudes computed over that window. A Meter
// feeds the analyser from a remote track's decoded PCM tap and refreshes a
// normalized level value on a display-cadence tick, decoupled from the
// 1 Hz quality sampling loop.
package level

import (
	"math"
	"math/cmplx"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	// DefaultFFTSize is the analysis window length in samples.
	DefaultFFTSize = 2048

	// dB mapping range for byte-scaled magnitudes.
	minDecibels = -100.0
	maxDecibels = -30.0
)

// Analyser computes frequency-domain magnitudes over the most recent PCM
// window. It is safe for concurrent use: the track read pump writes samples
// while the meter tick reads magnitudes.
type Analyser struct {
	mu      sync.Mutex
	fft     *fourier.FFT
	window  []float64
	filled  int
	size    int
	hann    []float64
	scratch []float64
}

// NewAnalyser creates an analyser with the given window size. Sizes that
// are not positive fall back to DefaultFFTSize.
func NewAnalyser(fftSize int) *Analyser {
	if fftSize <= 0 {
		fftSize = DefaultFFTSize
	}

	hann := make([]float64, fftSize)
	for i := range hann {
		hann[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(fftSize-1)))
	}

	return &Analyser{
		fft:     fourier.NewFFT(fftSize),
		window:  make([]float64, fftSize),
		size:    fftSize,
		hann:    hann,
		scratch: make([]float64, fftSize),
	}
}

// Write appends PCM samples to the analysis window, keeping the most
// recent size samples.
func (a *Analyser) Write(pcm []int16) {
	if len(pcm) == 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if len(pcm) >= a.size {
		pcm = pcm[len(pcm)-a.size:]
		for i, s := range pcm {
			a.window[i] = float64(s) / 32768.0
		}
		a.filled = a.size
		return
	}

	keep := a.size - len(pcm)
	copy(a.window, a.window[a.size-keep:])
	for i, s := range pcm {
		a.window[keep+i] = float64(s) / 32768.0
	}
	if a.filled < a.size {
		a.filled += len(pcm)
		if a.filled > a.size {
			a.filled = a.size
		}
	}
}

// ByteFrequencyData returns the current frequency-bin magnitudes scaled to
// the 0-255 byte range using a decibel mapping.
func (a *Analyser) ByteFrequencyData() []byte {
	a.mu.Lock()
	if a.filled == 0 {
		a.mu.Unlock()
		return make([]byte, a.size/2)
	}
	for i, s := range a.window {
		a.scratch[i] = s * a.hann[i]
	}
	coeffs := a.fft.Coefficients(nil, a.scratch)
	a.mu.Unlock()

	bins := make([]byte, a.size/2)
	norm := float64(a.size)
	for i := 0; i < len(bins); i++ {
		magnitude := cmplx.Abs(coeffs[i]) / norm
		db := minDecibels
		if magnitude > 0 {
			db = 20 * math.Log10(magnitude)
		}
		scaled := (db - minDecibels) / (maxDecibels - minDecibels) * 255.0
		if scaled < 0 {
			scaled = 0
		} else if scaled > 255 {
			scaled = 255
		}
		bins[i] = byte(scaled)
	}
	return bins
}

// Level returns the arithmetic mean of the frequency-bin magnitudes
// normalized to [0,1] by the maximum representable bin value.
func (a *Analyser) Level() float64 {
	bins := a.ByteFrequencyData()
	if len(bins) == 0 {
		return 0
	}

	var sum float64
	for _, b := range bins {
		sum += float64(b)
	}
	return sum / float64(len(bins)) / 255.0
}

// Reset clears the analysis window.
func (a *Analyser) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.window {
		a.window[i] = 0
	}
	a.filled = 0
}
