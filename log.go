package mapper

import (
	"log"
	"os"
)

// DefaultLogger is the package-wide fallback logger, used by any
// Session or CdpTarget constructed without an explicit logf option —
// the same role chromedp.Logger plays in the teacher's log.go.
var DefaultLogger = log.New(os.Stderr, "mapper ", log.LstdFlags)
