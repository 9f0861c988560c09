package server

import "errors"

// Common errors in the server package
var (
	// ErrResponseWriterNotFlusher is returned when the ResponseWriter doesn't support Flusher interface
	ErrResponseWriterNotFlusher = errors.New("response writer does not implement http.Flusher")

	// ErrStreamClosed is returned when sending to a stream that has terminated
	ErrStreamClosed = errors.New("sse stream is closed")

	// ErrChannelFull is returned when a stream's queue cannot take another frame
	ErrChannelFull = errors.New("sse stream queue is full")
)
