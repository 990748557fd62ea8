// Package hash provides keyed digests for values that must be looked up
// later without being stored, such as enrollment keys and proof-of-answer
// tokens.
//
// A single master secret is configured once. Each purpose derives its own
// key from it with Named, so a digest produced for one purpose never
// verifies for another.
package hash
