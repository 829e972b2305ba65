//go:build !unix

package reexec

// Stack size of a running Windows process is fixed by its image header.
func setStackLimit(uint64) error {
	return nil
}
