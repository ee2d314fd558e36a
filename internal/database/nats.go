package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// ConnectNATS dials the message bus used to fan view invalidations out to
// every API worker. An empty url disables the bus and returns nil.
func ConnectNATS(url, name string) (*nats.Conn, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, nil
	}

	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to nats: %w", err)
	}

	return conn, nil
}
