// Package httpserver constructs the process's HTTP listener.
package httpserver

import (
	"net/http"
	"time"
)

// ShutdownTimeout bounds graceful drain on shutdown. Long-lived event
// streams are cut off once it elapses.
const ShutdownTimeout = 10 * time.Second

// New returns a server for the signal API. ReadHeaderTimeout guards
// against slow-header clients; the write timeout stays zero because
// subscription streams hold their response open indefinitely.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
