// Package services provides shared helpers for the remote stage clients:
// a sentinel-based error taxonomy and context annotation utilities used by
// structured logging.
package services
