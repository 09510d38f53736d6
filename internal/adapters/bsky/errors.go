package bsky

import "errors"

var (
	// ErrNoSession is returned by calls made before a successful Login.
	ErrNoSession = errors.New("bsky: not logged in")
	// ErrLogin wraps createSession failures.
	ErrLogin = errors.New("bsky: login failed")
)
