// Package fingerprint computes the content digests used throughout the
// cache: as memo keys and as storage filenames.
//
// The digest is MD5, hex-encoded. Collision resistance only has to hold at
// the scale of cached models, and the 128-bit hex form is a compatibility
// contract with existing cache directories: the same digest function is
// applied to canonical program text and to serialized dataset files, so a
// digest collision is the only way two logical objects can share storage.
package fingerprint

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// chunkSize bounds memory use when digesting dataset files.
const chunkSize = 1 << 20

// Text computes the digest of canonical program text.
//
// The text must be 7-bit ASCII. The normalizer strips non-ASCII bytes before
// any text reaches this function, so a violation here indicates a caller bug
// rather than bad user input.
func Text(s string) (string, error) {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7f {
			return "", fmt.Errorf("fingerprint: non-ASCII byte 0x%02x at offset %d", s[i], i)
		}
	}
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:]), nil
}

// File computes the digest of a file's raw bytes, streaming in fixed-size
// chunks so arbitrarily large dataset files never load fully into memory.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	defer f.Close()

	h := md5.New()
	buf := make([]byte, chunkSize)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("fingerprint %s: %w", path, err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
