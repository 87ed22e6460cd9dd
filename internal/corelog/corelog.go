// Package corelog is the logging seam used where the file-system core must
// not fail a caller but still needs to record that something went wrong --
// principally [fat32.File.Close], whose contract is "flush failures are
// logged, not returned."
package corelog

import (
	"fmt"

	log "github.com/dsoprea/go-logging"
)

// WarnFlushFailure records a non-fatal failure encountered while flushing
// file or directory state during close. err is passed through log.Wrap so it
// carries the originating stack frame, the same idiom go-exfat applies at
// its own I/O boundaries.
func WarnFlushFailure(operation string, err error) {
	if err == nil {
		return
	}
	wrapped := log.Wrap(err)
	fmt.Printf("corefs: %s: %s\n", operation, wrapped.Error())
}

// Errorf builds a new error through the logging package so it is recorded at
// the point of creation, matching the idiom go-exfat uses at its I/O
// boundaries (`log.Errorf(...)` instead of `fmt.Errorf(...)`).
func Errorf(format string, args ...interface{}) error {
	return log.Errorf(format, args...)
}
