package scan

import (
	"fmt"
	"os"
)

// Status of a destination file before a transfer.
type Status int

const (
	// Fetch means the destination does not exist yet.
	Fetch Status = iota
	// Skip means the destination already holds at least the expected
	// number of bytes.
	Skip
	// Refetch means a short destination file was removed so the copy
	// starts over.
	Refetch
)

// CheckDest implements the resume rule: a destination at least as large
// as expected is done, a short one is stale output of an interrupted copy
// and gets removed. With an unknown expected size (0) an existing file is
// trusted.
func CheckDest(dest string, expected int64) (Status, error) {
	info, err := os.Stat(dest)
	if os.IsNotExist(err) {
		return Fetch, nil
	}
	if err != nil {
		return Fetch, fmt.Errorf("stat %s: %w", dest, err)
	}
	if info.Size() >= expected {
		return Skip, nil
	}
	if err := os.Remove(dest); err != nil {
		return Refetch, fmt.Errorf("remove short file %s: %w", dest, err)
	}
	return Refetch, nil
}
