package conversation

import "errors"

// ErrNotFound is returned when a conversation does not exist or is not owned
// by the caller.
var ErrNotFound = errors.New("conversation not found")
