package stacktrace

import "strings"

const internalDir = "/internal/"

// InternalPaths returns the "internal/<pkg>/<file>.go:<line>" frames of a
// stack captured by runtime/debug.Stack, innermost first.
func InternalPaths(stack []byte) []string {
	var paths []string
	for line := range strings.Lines(string(stack)) {
		frame, ok := internalFrame(strings.TrimSpace(line))
		if ok {
			paths = append(paths, frame)
		}
	}
	return paths
}

// internalFrame extracts the file position from a frame line such as
// "/src/app/internal/x/y.go:42 +0x1a".
func internalFrame(line string) (string, bool) {
	pos, _, _ := strings.Cut(line, " ")
	if !strings.Contains(pos, ".go:") {
		return "", false
	}

	i := strings.Index(pos, internalDir)
	if i < 0 {
		return "", false
	}
	return pos[i+1:], true
}
