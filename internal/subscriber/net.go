package subscriber

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"

	"github.com/eclipse/paho.golang/packets"
)

// ConnectionProvider is a function that returns a net.Conn connected to an
// MQTT broker that is ready to read to and write from. The returned net.Conn
// must be thread-safe (i.e., concurrent Write calls must not interleave).
type ConnectionProvider func(context.Context) (net.Conn, error)

// TCPConnection is a ConnectionProvider that connects to an MQTT broker over
// plain TCP.
func TCPConnection(hostname string, port int) ConnectionProvider {
	return func(ctx context.Context) (net.Conn, error) {
		var d net.Dialer
		conn, err := d.DialContext(
			ctx,
			"tcp",
			fmt.Sprintf("%s:%d", hostname, port),
		)
		if err != nil {
			return nil, &ConnectionError{
				message: "error opening TCP connection",
				wrapped: err,
			}
		}
		return conn, nil
	}
}

// TLSConnection is a ConnectionProvider that connects to an MQTT broker with
// TLS over TCP.
func TLSConnection(
	hostname string,
	port int,
	config *tls.Config,
) ConnectionProvider {
	return func(ctx context.Context) (net.Conn, error) {
		d := tls.Dialer{Config: config}
		conn, err := d.DialContext(
			ctx,
			"tcp",
			fmt.Sprintf("%s:%d", hostname, port),
		)
		if err != nil {
			return nil, &ConnectionError{
				message: "error opening TLS connection",
				wrapped: err,
			}
		}
		return packets.NewThreadSafeConn(conn), nil
	}
}
