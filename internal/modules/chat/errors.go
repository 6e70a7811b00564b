package chat

import "errors"

var (
	ErrContactNotFound        = errors.New("contact not found")
	ErrContactExists          = errors.New("contact already exists")
	ErrInvalidMessageData     = errors.New("invalid message data provided")
	ErrWebSocketUpgradeFailed = errors.New("failed to upgrade to websocket protocol")
	ErrUnknownFrame           = errors.New("unknown message type")
)
