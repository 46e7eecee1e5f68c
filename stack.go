package glowroot

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/varsh009/glowroot/internal/log"
)

// facadePackagePrefix identifies frames belonging to this package
// itself (and, transitively, the handle types it defines) so they can
// be stripped from a captured stack trace — the Go equivalent of the
// original source's "skip frames whose declaring type is
// PluginServicesImpl or one of its nested types."
const facadePackagePrefix = "github.com/varsh009/glowroot."

// captureStackTrace walks the caller's stack starting skip frames above
// captureStackTrace itself, discards every leading frame belonging to
// this package, and returns the rest formatted as "function (file:line)"
// strings, innermost (the caller) first, in the order
// runtime.CallersFrames yields them. If no frame outside the package is found, it logs at warn and
// returns nil, matching spec §4.1's stripping fallback.
func captureStackTrace(skip int) []string {
	pcs := make([]uintptr, 64)
	for {
		n := runtime.Callers(skip, pcs)
		if n < len(pcs) {
			pcs = pcs[:n]
			break
		}
		pcs = make([]uintptr, 2*len(pcs))
	}
	if len(pcs) == 0 {
		log.Warnf("stack trace capture: no frames available")
		return nil
	}

	frames := runtime.CallersFrames(pcs)
	var out []string
	foundCaller := false
	for {
		frame, more := frames.Next()
		if !foundCaller {
			if isFacadeFrame(frame.Function) {
				if !more {
					break
				}
				continue
			}
			foundCaller = true
		}
		out = append(out, formatFrame(frame))
		if !more {
			break
		}
	}
	if !foundCaller {
		log.Warnf("stack trace capture: no caller frame found outside the facade")
		return nil
	}
	return out
}

func isFacadeFrame(function string) bool {
	return strings.HasPrefix(function, facadePackagePrefix)
}

func formatFrame(f runtime.Frame) string {
	return fmt.Sprintf("%s (%s:%d)", f.Function, f.File, f.Line)
}
