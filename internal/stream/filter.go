package stream

import (
	"strings"

	"streamview/pkg/models"
)

// Matches reports whether substring occurs in the message's canonical text.
// That is the payload text as normalized, never a re-encoding of the
// structured form. An empty substring matches everything.
func Matches(msg models.NormalizedMessage, substring string) bool {
	if substring == "" {
		return true
	}
	return strings.Contains(msg.Data, substring)
}
