package model

// ConnectionStatus is the binary health indicator of a subscriber.
type ConnectionStatus string

const (
	StatusConnected    ConnectionStatus = "connected"
	StatusDisconnected ConnectionStatus = "disconnected"
)

func (s ConnectionStatus) String() string { return string(s) }
