package session

import (
	"errors"
	"fmt"

	"github.com/hupe1980/marketingmesh/core"
)

// ErrPartialMessage is returned when a streaming fragment is appended.
// Only complete messages belong to the conversation log.
var ErrPartialMessage = errors.New("partial messages are not persisted")

func validateAppend(sessionID string, msg core.Message) error {
	if sessionID == "" {
		return errors.New("session id is required")
	}
	if msg.Partial {
		return ErrPartialMessage
	}
	if !msg.Role.Valid() {
		return fmt.Errorf("invalid message role %q", msg.Role)
	}
	return nil
}
