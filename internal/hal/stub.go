//go:build !linux

package hal

import "errors"

// RealBoard is not available on non-Linux platforms.
type RealBoard struct {
	Board
}

// NewRealBoard returns an error on non-Linux platforms.
func NewRealBoard() (*RealBoard, error) {
	return nil, errors.New("hal: not supported on this platform (requires Linux)")
}

// Close is a no-op on non-Linux platforms.
func (b *RealBoard) Close() error { return nil }
