package version

import (
	"fmt"
	"io"
	"runtime"
)

const (
	Version = "0.3.0"
)

// String returns the one-line version banner
func String() string {
	return fmt.Sprintf("vidresolve v%s (%s/%s)", Version, runtime.GOOS, runtime.GOARCH)
}

// ShowVersion prints the version banner to w
func ShowVersion(w io.Writer) {
	_, _ = fmt.Fprintln(w, String())
}
