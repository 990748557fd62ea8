// Package otp implements the time-based one-time password primitives used by
// the factor engine: a strict base32 codec, RFC 4226 dynamic truncation over
// HMAC-SHA1, and the timestep window policy that decides which neighbouring
// steps a response may come from.
//
// Everything except KeyGenerator is a pure function of its inputs. Callers
// pass wall-clock time in explicitly so tests can pin the current timestep.
package otp
