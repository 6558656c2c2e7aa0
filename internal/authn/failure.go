package authn

import "errors"

type Reason string

const (
	MissingHeader       Reason = "missing_header"
	MissingToken        Reason = "missing_token"
	InvalidSession      Reason = "invalid_session"
	AuthenticationError Reason = "authentication_error"
)

// Failure is the only error type strategies return
type Failure struct {
	Reason Reason
	Err    error
}

func fail(r Reason, err error) *Failure {
	return &Failure{Reason: r, Err: err}
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return string(f.Reason)
	}

	return string(f.Reason) + ": " + f.Err.Error()
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Message is safe to show to clients. Causes are left out.
func (f *Failure) Message() string {
	switch f.Reason {
	case MissingHeader:
		return "Missing Authorization header"
	case MissingToken:
		return "Missing or malformed bearer token"
	case InvalidSession:
		return "Invalid or expired session"
	default:
		return "Authentication failed"
	}
}

// ReasonOf extracts the failure reason from err, if any
func ReasonOf(err error) (Reason, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f.Reason, true
	}

	return "", false
}
