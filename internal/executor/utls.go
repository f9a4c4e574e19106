package executor

import (
	"context"
	"net"
	"net/http"
	"time"

	utls "github.com/refraction-networking/utls"
)

// newUTLSTransport returns an http.Transport that performs the TLS
// handshake with a Chrome ClientHello fingerprint instead of Go's default,
// matching upstream Claude's TLS fingerprint expectations (spec §4.7).
func newUTLSTransport() *http.Transport {
	dialer := &net.Dialer{Timeout: 30 * time.Second}
	return &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			rawConn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			return rawConn, nil
		},
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			rawConn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			host, _, err := net.SplitHostPort(addr)
			if err != nil {
				host = addr
			}
			uconn := utls.UClient(rawConn, &utls.Config{ServerName: host}, utls.HelloChrome_Auto)
			if err := uconn.HandshakeContext(ctx); err != nil {
				rawConn.Close()
				return nil, err
			}
			return uconn, nil
		},
		TLSHandshakeTimeout:   15 * time.Second,
		ForceAttemptHTTP2:     false,
		MaxIdleConnsPerHost:   16,
		ResponseHeaderTimeout: 60 * time.Second,
	}
}
