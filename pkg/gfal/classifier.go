package gfal

import (
	"fmt"
	"strings"

	"github.com/hep-ops/gridsync/pkg/transfer"
)

// Classifier decides whether a non-zero tool exit is worth retrying.
// The exact exit codes and messages vary between gfal versions and
// storage elements, so the policy is injectable.
type Classifier func(exit int, stderr string) error

// Diagnostic substrings, matched case-insensitively against stderr.
var (
	fatalMarkers = []string{
		"no such file",
		"does not exist",
		"permission denied",
		"access denied",
		"invalid argument",
		"credential",
		"proxy expired",
		"authorization",
	}
	retryableMarkers = []string{
		"timed out",
		"timeout",
		"connection",
		"busy",
		"temporarily",
		"service unavailable",
	}
)

// DefaultClassifier treats missing sources, permission problems and
// malformed arguments as fatal, known transient diagnostics as
// retryable, and anything it does not recognize as retryable: the retry
// budget bounds the cost of guessing wrong, while a wrong fatal guess
// would drop the item for good.
func DefaultClassifier(exit int, stderr string) error {
	err := fmt.Errorf("exit status %d: %s", exit, firstLine(stderr))
	diag := strings.ToLower(stderr)
	for _, marker := range fatalMarkers {
		if strings.Contains(diag, marker) {
			return transfer.Fatal(err)
		}
	}
	for _, marker := range retryableMarkers {
		if strings.Contains(diag, marker) {
			return transfer.Retryable(err)
		}
	}
	return transfer.Retryable(err)
}
