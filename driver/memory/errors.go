package memory

import "errors"

// ErrNoSpace is returned when a write would exceed Config.MaxSize
var ErrNoSpace = errors.New("memory backend is full")
