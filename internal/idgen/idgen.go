package idgen

import "github.com/google/uuid"

// NewFunc produces identifiers. Tests replace it to make task and message
// ids predictable.
var NewFunc = func() string { return uuid.New().String() }

// New returns a fresh globally unique identifier.
func New() string { return NewFunc() }
