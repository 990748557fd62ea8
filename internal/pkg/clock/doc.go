// Package clock provides a tiny time abstraction.
//
// Production code should depend on the Clocker interface instead of calling
// time.Now() directly. Timestep-sensitive logic is tested with Frozen, which
// only moves when the test calls Set or Advance.
package clock
