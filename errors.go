package safevoice

import (
	"github.com/safevoice/safevoice-go/internal/rest"
	"github.com/safevoice/safevoice-go/notify"
	"github.com/safevoice/safevoice-go/session"
)

var (
	// ErrNotAuthenticated is an alias of [session.ErrNotAuthenticated].
	ErrNotAuthenticated = session.ErrNotAuthenticated
	// ErrClosed is returned by operations on a closed client.
	ErrClosed = session.ErrClosed
	// ErrRefreshRejected is returned when the backend refuses the refresh
	// token; the user must authenticate again.
	ErrRefreshRejected = rest.ErrRefreshRejected
	// ErrInvalidCredentials is returned by a failed credential exchange.
	ErrInvalidCredentials = rest.ErrInvalidCredentials
	// ErrUnknownNotification is an alias of [notify.ErrUnknownNotification].
	ErrUnknownNotification = notify.ErrUnknownNotification
)
