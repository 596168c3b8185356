// Package clock provides an injectable time source so reconnect backoff and
// token expiry can be driven deterministically in tests.
//
// Production code holds a Clock field set to Real(). Tests use Fake(), which
// only moves when Advance is called:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	m := connection.New(connection.Options{Clock: c, ...})
//	c.WaitForTimers(1)         // a goroutine is sleeping in backoff
//	c.Advance(2 * time.Second) // wake it
package clock
