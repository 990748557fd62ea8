package hash

// Hash produces and verifies hex-encoded keyed digests.
type Hash interface {
	Hash(str string) ([]byte, error)
	Verify(hashed, str string) bool
}
