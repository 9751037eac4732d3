package platform

import (
	"github.com/aeroframe-io/core/internal/eventbus"
	"github.com/aeroframe-io/core/internal/mlog"
)

// OpenRabbitMQ declares the fanout exchange and durable queue used by the
// event bus (C2) and returns the connected handle.
func OpenRabbitMQ(url, exchange, queue string, logger mlog.Logger) (*eventbus.Connection, error) {
	conn := eventbus.NewConnection(url, exchange, queue, logger)
	if err := conn.Connect(); err != nil {
		return nil, err
	}

	return conn, nil
}
