package auth

import "context"

// Credentials is one login or registration attempt as carried by the
// Intro packet. Email is only meaningful when registering.
type Credentials struct {
	Username string
	Password string
	Email    string
	Register bool
}

// Result classifies the provider's verdict. Every non-OK result maps to a
// connection-closing notification; the session never proceeds to spawn a
// player on an ambiguous outcome.
type Result int

const (
	ResultOK Result = iota
	ResultUsernameTaken
	ResultEmailTaken
	ResultInvalidCredentials
	ResultMalformedResponse
	ResultUnreachable
)

// Notification returns the wire reason sent to the client before the
// close. OK has no notification.
func (r Result) Notification() string {
	switch r {
	case ResultUsernameTaken:
		return "userexists"
	case ResultEmailTaken:
		return "emailexists"
	case ResultInvalidCredentials:
		return "invalidlogin"
	case ResultMalformedResponse:
		return "error"
	case ResultUnreachable:
		return "disallowed"
	default:
		return ""
	}
}

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "ok"
	case ResultUsernameTaken:
		return "username-taken"
	case ResultEmailTaken:
		return "email-taken"
	case ResultInvalidCredentials:
		return "invalid-credentials"
	case ResultMalformedResponse:
		return "malformed-response"
	case ResultUnreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}

// Provider authenticates or registers a player. The error carries detail
// for logging; the Result alone decides what the client is told.
type Provider interface {
	Authenticate(ctx context.Context, creds Credentials) (Result, error)
}
