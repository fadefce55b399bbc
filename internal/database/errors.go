package database

import "errors"

// ErrMissingContext indicates an archive was built without a database.
var ErrMissingContext = errors.New("database: missing database context")
