package session

import "errors"

// Rejected intents leave the session untouched and report one of these.
var (
	ErrEmptyName     = errors.New("display name is empty")
	ErrAlreadyJoined = errors.New("session is already joining or connected")
	ErrNotConnected  = errors.New("not connected to server")
	ErrEmptyText     = errors.New("message text is empty")
	ErrSendQueueFull = errors.New("send queue is full")
	ErrUnknownEvent  = errors.New("no such message in log")
	ErrReplyToSystem = errors.New("cannot reply to a system message")
)
