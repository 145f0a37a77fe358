// Package rotation keeps a credentials snapshot fresh in the background.
//
// An Engine owns one snapshot and one Retriever. Start performs a
// synchronous bootstrap retrieval, then hands off to a worker goroutine that
// sleeps until the snapshot's expiration minus a lead time, retrieves a new
// snapshot, swaps it in and sleeps again. Readers call Credentials at any
// time and always see either the old or the new snapshot, never a mix.
//
// # Lifecycle
//
//	Initialized ──Start──▶ Running ──Stop──▶ ShuttingDown ──worker exits──▶ Stopped
//	     │                                                                    ▲
//	     └───────────────────────────Stop─────────────────────────────────────┘
//
// Stop is cooperative and never blocks: a retrieval already in flight runs to
// completion, after which the worker observes the new status and exits
// without arming another rotation. Wait blocks until Stopped.
//
// # Failure Policy
//
// A failed background rotation is logged and freezes the engine: the last
// good snapshot keeps being served and no further rotation is armed. There
// is no caller to report the failure to, and looping on a broken retriever
// is worse than serving credentials that will eventually expire. A frozen
// engine still honours Stop.
//
// # Time
//
// The engine takes its timers from an injected k8s.io/utils/clock.Clock.
// Tests pass a FakeClock and step it; FakeClock.HasWaiters reports whether
// a rotation is currently armed.
package rotation
