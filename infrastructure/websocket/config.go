package websocket

import "time"

type Config struct {
	ConnectionBufferSize int
	MaxFrameSize         int64
	WriteTimeout         time.Duration
	PongTimeout          time.Duration
}

func DefaultConfig() Config {
	return Config{
		ConnectionBufferSize: 64,
		MaxFrameSize:         16 * 1024,
		WriteTimeout:         10 * time.Second,
		PongTimeout:          60 * time.Second,
	}
}

// pingPeriod must stay below PongTimeout so the peer has time to answer.
func (c Config) pingPeriod() time.Duration {
	return c.PongTimeout * 9 / 10
}
