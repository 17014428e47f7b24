package ringstream

import "github.com/rs/zerolog"

// resolveLogger returns l, or zerolog's documented no-op logger when l
// is nil, grounded on joeycumines-go-utilpkg's logiface-zerolog
// backend taking a *zerolog.Logger dependency directly.
func resolveLogger(l *zerolog.Logger) zerolog.Logger {
	if l == nil {
		nop := zerolog.Nop()
		return nop
	}
	return *l
}
