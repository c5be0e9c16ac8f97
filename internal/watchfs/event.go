package watchfs

import (
	"path/filepath"
	"strings"
	"time"
)

// Op identifies the kind of filesystem change observed.
type Op uint8

const (
	OpCreate Op = iota + 1
	OpWrite
	OpRemove
)

func (o Op) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Event is a neutral filesystem event consumed by the debouncer and the
// completion resolver.
type Event struct {
	Path string
	Op   Op
}

// Suffixes written by download clients for in-progress transfers.
var tempSuffixes = []string{".tmp", ".part", ".crdownload"}

// ShouldIgnore reports whether a path is a temp artifact or hidden file that
// must never become a job.
func ShouldIgnore(path string) bool {
	base := filepath.Base(path)
	if base == "" || base == "." {
		return true
	}
	if strings.HasPrefix(base, ".") {
		return true
	}
	lower := strings.ToLower(base)
	for _, suffix := range tempSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// Clock abstracts time for the debouncer.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock returns the wall clock.
func RealClock() Clock { return realClock{} }
