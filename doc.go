// SPDX-License-Identifier: GPL-3.0-or-later

// Package corenet is the core of a multi-protocol network I/O framework used
// to build both clients and servers speaking TCP, UDP, TLS, DTLS over IPv4,
// IPv6 and Unix sockets, carrying HTTP/1.x, HTTP/2, WebSocket, SOCKS5, or a
// custom length-framed message protocol (see the cmp subpackage) on top.
//
// # Core Abstraction
//
// A [Core] owns exactly one [dispatcher.Dispatcher] (a single-threaded
// reactor) and one or more [scheme.Scheme] (logical endpoint groups, each a
// listening server endpoint or an outbound client target). Each scheme owns
// a set of [broker.Broker] — one per connected peer or listening socket.
// Readiness flows dispatcher → broker → scheme callback → Core → caller
// callback; writes flow the other way. See the package tree:
//
//   - [Core] (this package): public façade — start/stop, add/remove scheme,
//     open/close, read/write, timers, rebase, bind/unbind to another Core.
//   - broker: per-connection state machine, events, timeouts, watermarks.
//   - scheme: broker registry and per-endpoint configuration.
//   - dispatcher: the reactor loop (start/stop/freeze/rebase/frequency) and
//     the timer table, built on internal/poller (epoll/kqueue/portable).
//   - tlsengine: per-connection TLS/DTLS context, SNI, ALPN.
//   - cluster: optional multi-process fan-out (master forks N workers).
//   - cmp: the length-framed IPC codec used for cluster traffic.
//   - resolve: the DNS collaborator consulted by [Core.Open] for client
//     connections.
//
// # Composition utilities
//
// This package retains the teacher's [Func] abstraction for small, ordered
// pipelines used internally by [Core.Open] and by the resolve package (DNS
// dial → optional TLS handshake → optional HTTP transport):
//
//	type Func[A, B any] interface {
//		Call(ctx context.Context, input A) (B, error)
//	}
//
// [Compose2] through [Compose8] chain [Func] instances together; [Apply] and
// [ConstFunc] lift a fixed value into the Func world.
//
// # Observability
//
// All components support structured logging via [SLogger] (compatible with
// [log/slog]); by default, logging is disabled. Error classification is
// configurable via [ErrClassifier] and defaults to [DefaultErrClassifier],
// which wraps the external github.com/bassosimone/errclass package. Every
// broker termination yields exactly one disconnect callback invocation; no
// separate disconnect log event is emitted.
//
// # Concurrency
//
// All callback dispatch, socket I/O and timer firing for a given [Core]
// happen on the single goroutine that called [Core.Start]. The only
// cross-thread-safe entry points are [internal/notify.Notifier.Notify],
// the cluster message-send path, and [Core.Stop]. User callbacks must not
// block; they enqueue writes via [Core.Write] instead of writing directly.
package corenet
