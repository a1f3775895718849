package testhelpers

import (
	infralogger "github.com/jonesrussell/site-portfolio/infrastructure/logger"
)

// NewTestLogger returns a logger that discards everything.
func NewTestLogger() infralogger.Logger {
	return infralogger.NewNop()
}
