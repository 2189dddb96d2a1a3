package room

import "errors"

// ErrRoomFull covers both "no open slot" and "service tag mismatch".
// The two failure modes must be externally indistinguishable, so they
// share one sentinel.
var ErrRoomFull = errors.New("room is full")
