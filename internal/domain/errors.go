package domain

import "errors"

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrNotAuthorized   = errors.New("caller is not the room controller")
	ErrUnknownTarget   = errors.New("target is not a member of the room")
	ErrNotInRoom       = errors.New("user not in the room")
	ErrNoTrack         = errors.New("no track loaded")
	ErrEmptyQueue      = errors.New("queue is empty")
	ErrSessionNotFound = errors.New("session not found")
	ErrNoIdentity      = errors.New("display identity is required")
)
