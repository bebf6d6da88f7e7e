package verify

import "fmt"

func errUnexpectedFile(rel string) error {
	return fmt.Errorf("unexpected file: %s", rel)
}

func errHashMismatch(rel string) error {
	return fmt.Errorf("hash mismatch: %s", rel)
}

func errMissingFiles(rel string) error {
	return fmt.Errorf("missing files: %s", rel)
}
