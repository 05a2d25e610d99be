// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across gateway/store layers.
var (
	// ErrAuthenticationFailed indicates the server rejected signin/signup credentials.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrSessionExpired indicates an authenticated call was denied mid-session.
	// The gateway converts it into a forced logout before returning it.
	ErrSessionExpired = errors.New("session expired")

	// ErrNetworkUnavailable indicates a transport-level failure; state is unchanged.
	ErrNetworkUnavailable = errors.New("network unavailable")

	// ErrBootstrapIncomplete indicates a post-auth fetch failed; the session was not committed.
	ErrBootstrapIncomplete = errors.New("bootstrap incomplete")

	// ErrStreamDisconnected indicates the push stream closed; terminal for that handle.
	ErrStreamDisconnected = errors.New("stream disconnected")

	// ErrChannelNotFound indicates the channel id is not in the channel list.
	ErrChannelNotFound = errors.New("channel not found")

	// ErrNotFound indicates the requested key is absent from durable storage.
	ErrNotFound = errors.New("not found")

	// ErrNoSession indicates an operation that needs a session ran without one.
	ErrNoSession = errors.New("no active session")
)
