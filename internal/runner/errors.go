package runner

import "fmt"

// IntegrityError reports that the program the engine loaded does not match
// the canonical text the caller asked to run. It signals cache corruption or
// a hashing defect; the run is always aborted, never papered over.
type IntegrityError struct {
	// Path is the stored program file the engine compiled.
	Path string
	// Fingerprint is the digest the file was stored under.
	Fingerprint string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("INTEGRITY_VIOLATION: stored program %s (fingerprint %s) does not match requested canonical text", e.Path, e.Fingerprint)
}
