// Package quality maintains the rolling quality snapshot for an audio
// session and classifies it into discrete levels.
//
// The package has three pieces. Sampler owns the snapshot: it reads the
// transport's outbound statistics once per second, folds in transport-pushed
// connection quality events as they arrive, and replaces the snapshot
// wholesale on each tick. Assess maps a snapshot to one of four ordinal
// buckets using descending thresholds. Broadcaster fans the snapshot out to
// any number of subscribers once per sampling tick.
//
// Sampling is self-terminating: once the bound statistics source is
// cleared the timer stops on its next tick, so a Sampler can always be
// dropped safely after Unbind.
package quality
