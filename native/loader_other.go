//go:build !(darwin || freebsd || linux)

package native

import "fmt"

type unsupportedLoader struct{}

// DefaultLoader returns the platform loader. Dynamic loading is not
// available on this platform.
func DefaultLoader() Loader {
	return unsupportedLoader{}
}

func (unsupportedLoader) Open(path string) (Library, error) {
	return nil, fmt.Errorf("dynamic loading is not supported on this platform")
}
