// SPDX-License-Identifier: GPL-3.0-or-later

package corenet

import (
	"net"
	"time"
)

// Config holds common configuration for corenet operations.
//
// Pass this to constructor functions to pre-wire dependencies. All fields
// have sensible defaults set by [NewConfig]. A [*Config] is shared by a
// [Core] and every [Scheme] it owns unless a scheme overrides a field.
type Config struct {
	// Dialer is used by [*ConnectFunc] and by the default DNS collaborator.
	//
	// Set by [NewConfig] to [*net.Dialer].
	Dialer Dialer

	// ErrClassifier classifies errors for structured logging and for
	// mapping raw errors onto the error taxonomy in [ErrKind].
	//
	// Set by [NewConfig] to [DefaultErrClassifier].
	ErrClassifier ErrClassifier

	// TimeNow returns the current time.
	//
	// Set by [NewConfig] to [time.Now].
	TimeNow func() time.Time

	// DispatcherFrequency is the polling interval [Core.Easily] applies
	// when easy mode is enabled. Zero makes [Core.Easily] fall back to a
	// 1ms poll sleep; [New] does not apply this field by itself.
	//
	// Set by [NewConfig] to 0.
	DispatcherFrequency time.Duration

	// ReadTimeout, WriteTimeout, ConnectTimeout and IdleTimeout are the
	// default per-direction broker timeouts applied to brokers that do not
	// override them.
	//
	// Set by [NewConfig] to 0 (no timeout).
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	ConnectTimeout time.Duration
	IdleTimeout    time.Duration

	// ReadWatermarkMin, ReadWatermarkMax, WriteWatermarkMax hold watermark
	// values for brokers. Core does not read them: every broker starts
	// with the watermarks broker.New sets (1 byte, 64 KiB and 64 KiB).
	//
	// Set by [NewConfig] to 1 byte, 64 KiB and 64 KiB respectively.
	ReadWatermarkMin  int
	ReadWatermarkMax  int
	WriteWatermarkMax int

	// FDSoftLimitTarget is the soft nofile ceiling [New] attempts to
	// raise to via the FDS limiter.
	//
	// Set by [NewConfig] to 65536.
	FDSoftLimitTarget uint64

	// CMPChunkSize holds a CMP fragmentation threshold. The cluster
	// package does not read it: [cluster.New] sets Cluster.ChunkSize to
	// cmp.DefaultChunkSize.
	//
	// Set by [NewConfig] to 65536.
	CMPChunkSize int

	// RecentlyDisconnectedTTL is how long a closed broker id is retained on
	// the "recently disconnected" list before the Core's garbage-collection
	// timer purges it (spec §3, Broker lifecycle).
	//
	// Set by [NewConfig] to 10 seconds.
	RecentlyDisconnectedTTL time.Duration

	// Resolver is the DNS collaborator [Core.Open] falls back to for a
	// client scheme that does not set [SchemeDef.Resolver]. A common
	// choice is resolve.NewDefaultResolver() or a resolve.ServerResolver
	// pointed at a specific DNS server.
	//
	// Set by [NewConfig] to nil; [Core] substitutes a bare
	// [net.DefaultResolver] wrapper when nil, so setting this field is
	// only necessary to use a non-default DNS collaborator.
	Resolver Resolver

	// ConnectRetryDelay is the fixed backoff Core waits before retrying a
	// failed client connect under the reconnect policy.
	//
	// Set by [NewConfig] to 1 second.
	ConnectRetryDelay time.Duration
}

// ResolverOrDefault returns cfg.Resolver, or a stdlib-backed fallback if
// cfg.Resolver is nil.
func (cfg *Config) ResolverOrDefault() Resolver {
	if cfg.Resolver != nil {
		return cfg.Resolver
	}
	return defaultResolver{}
}

// ConnectRetryBackoff returns cfg.ConnectRetryDelay, or 1 second if unset.
func (cfg *Config) ConnectRetryBackoff() time.Duration {
	if cfg.ConnectRetryDelay > 0 {
		return cfg.ConnectRetryDelay
	}
	return time.Second
}

// NewConfig creates a [*Config] with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Dialer:                  &net.Dialer{},
		ErrClassifier:           DefaultErrClassifier,
		TimeNow:                 time.Now,
		DispatcherFrequency:     0,
		ReadWatermarkMin:        1,
		ReadWatermarkMax:        64 * 1024,
		WriteWatermarkMax:       64 * 1024,
		FDSoftLimitTarget:       65536,
		CMPChunkSize:            64 * 1024,
		RecentlyDisconnectedTTL: 10 * time.Second,
		ConnectRetryDelay:       time.Second,
	}
}
