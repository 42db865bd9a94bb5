package bookmark

import "errors"

// ErrDuplicate is returned when a named bookmark already exists in its scope.
var ErrDuplicate = errors.New("bookmark already exists")
