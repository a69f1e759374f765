package utility

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

func NewUUID() string {
	return uuid.New().String()
}

// NewSessionId returns an identifier for a charging session, prefixed
// so the UI can recognize locally issued sessions.
func NewSessionId() string {
	return fmt.Sprintf("sess_%d_%s", time.Now().UnixMilli(), uuid.New().String()[:6])
}
