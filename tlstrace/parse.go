package tlstrace

import (
	"regexp"
	"strings"
)

// serverHelloMarker anchors the search so key shares offered in the
// ClientHello are never mistaken for the negotiated group.
const serverHelloMarker = "ServerHello"

var namedGroupRe = regexp.MustCompile(`NamedGroup:\s+(\S+)`)

// ParseGroup extracts the negotiated group from a handshake trace: the token
// after the first "NamedGroup:" that follows the first "ServerHello".
func ParseGroup(text string) (string, bool) {
	idx := strings.Index(text, serverHelloMarker)
	if idx < 0 {
		return "", false
	}
	m := namedGroupRe.FindStringSubmatch(text[idx:])
	if m == nil {
		return "", false
	}
	return m[1], true
}
