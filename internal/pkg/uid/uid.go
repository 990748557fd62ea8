package uid

// NumberID generates unique int64 identifiers for stored rows.
type NumberID interface {
	Generate() int64
}

// StringID generates unique string identifiers.
type StringID interface {
	Generate() string
}
