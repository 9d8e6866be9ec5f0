package collections

import "errors"

// ErrNotFound indicates the requested collection does not exist
var ErrNotFound = errors.New("collection not found")
