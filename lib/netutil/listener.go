// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

// HTTPListener serves an http.Handler on a TCP address. chatsync uses
// it for the local /metrics endpoint.
type HTTPListener struct {
	listener net.Listener
	server   *http.Server
}

// NewHTTPListener listens on address (e.g. "127.0.0.1:9464"). Use port
// 0 for a random available port.
func NewHTTPListener(address string) (*HTTPListener, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	return &HTTPListener{
		listener: listener,
		server: &http.Server{
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
		},
	}, nil
}

// Serve dispatches connections to handler until ctx is cancelled or
// Close is called. It returns nil on either.
func (l *HTTPListener) Serve(ctx context.Context, handler http.Handler) error {
	l.server.Handler = handler

	stop := context.AfterFunc(ctx, func() { l.server.Close() })
	defer stop()

	err := l.server.Serve(l.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Address returns the bound address in "host:port" form.
func (l *HTTPListener) Address() string {
	return l.listener.Addr().String()
}

// Close stops the listener and any connections it is serving.
func (l *HTTPListener) Close() error {
	err := l.server.Close()
	l.listener.Close()
	return err
}

// NewHTTPClient returns a client for the chat server. timeout bounds
// each whole request and zero leaves it unbounded, as the long-poll
// stream needs. dialTimeout bounds connection setup alone.
func NewHTTPClient(timeout, dialTimeout time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConnsPerHost:   4,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: time.Second,
		},
	}
}
