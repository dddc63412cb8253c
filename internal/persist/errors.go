package persist

import (
	"fmt"

	"github.com/user/deckster/internal/types"
)

// PersistError reports a request the store did not accept after retries.
type PersistError struct {
	ID        types.MessageID
	SessionID types.SessionID
	Err       error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %s in session %s: %v", e.ID, e.SessionID, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}
