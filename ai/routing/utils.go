package routing

import (
	"github.com/hrygo/manas/ai/internal/strutil"
)

// truncate shortens s for log lines (Unicode-safe).
func truncate(s string, maxLen int) string {
	return strutil.Truncate(s, maxLen)
}
