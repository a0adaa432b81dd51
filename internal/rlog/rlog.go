// Package rlog gives every reactor a charmbracelet/log logger tagged
// with its component name, gated by a single --verbose flag per
// component.
package rlog

import (
	"os"

	"github.com/charmbracelet/log"
)

// New returns a logger prefixed with name. Verbose selects debug level;
// otherwise only info-and-above is printed.
func New(name string, verbose bool) *log.Logger {
	l := log.NewWithOptions(os.Stderr, log.Options{
		Prefix:          name,
		ReportTimestamp: true,
	})
	if verbose {
		l.SetLevel(log.DebugLevel)
	} else {
		l.SetLevel(log.InfoLevel)
	}
	return l
}
