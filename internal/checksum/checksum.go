// Package checksum computes adler32 checksums in the zero-padded hex
// form CMS storage elements record for file replicas.
package checksum

import (
	"fmt"
	"hash/adler32"
	"io"
	"os"
	"strings"
)

const bufferSize = 64 * 1024 // 64KB buffer

// FileAdler32 returns the hex adler32 checksum of a file.
func FileAdler32(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	return Adler32(file)
}

// Adler32 returns the hex adler32 checksum of everything read from r.
func Adler32(r io.Reader) (string, error) {
	hash := adler32.New()
	buffer := make([]byte, bufferSize)

	for {
		n, err := r.Read(buffer)
		if n > 0 {
			if _, werr := hash.Write(buffer[:n]); werr != nil {
				return "", fmt.Errorf("write to hash: %w", werr)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read: %w", err)
		}
	}

	return fmt.Sprintf("%08x", hash.Sum32()), nil
}

// Equal compares two hex adler32 checksums, ignoring case and leading
// zeros that some tools strip.
func Equal(a, b string) bool {
	return normalize(a) == normalize(b)
}

func normalize(sum string) string {
	sum = strings.TrimLeft(strings.ToLower(strings.TrimSpace(sum)), "0")
	if sum == "" {
		return "0"
	}
	return sum
}
