package knowledge

import "errors"

// ErrNotFound is returned when an entry does not exist or belongs to
// another owner.
var ErrNotFound = errors.New("knowledge entry not found")
