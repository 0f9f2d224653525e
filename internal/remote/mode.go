package remote

import (
	"fmt"
	"strings"
)

// Mode says whether widgets are mirrored by a server. It is chosen when a
// session is built; nothing consults a process-wide setting.
type Mode int

const (
	// ModeRemote mirrors widget state to the server.
	ModeRemote Mode = iota
	// ModeLocal runs widgets standalone; sessions refuse to send.
	ModeLocal
)

func (m Mode) String() string {
	switch m {
	case ModeRemote:
		return "remote"
	case ModeLocal:
		return "local"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode parses "remote" or "local". The empty string is ModeRemote.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "remote":
		return ModeRemote, nil
	case "local":
		return ModeLocal, nil
	}
	return 0, fmt.Errorf("unknown session mode %q", s)
}
