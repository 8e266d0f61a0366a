package versequiz

import (
	"io"
	"log"
	"os"
)

var (
	verboseMode bool
	logger      = log.New(os.Stderr, "versequiz: ", log.LstdFlags)
)

// SetVerbose turns per-draw tracing on or off
func SetVerbose(verbose bool) {
	verboseMode = verbose
}

// SetLogOutput redirects package logging, e.g. to io.Discard in tests
func SetLogOutput(w io.Writer) {
	logger.SetOutput(w)
}

// VerboseLog logs only when verbose mode is enabled
func VerboseLog(format string, v ...interface{}) {
	if verboseMode {
		logger.Printf(format, v...)
	}
}

func logf(format string, v ...interface{}) {
	logger.Printf(format, v...)
}
