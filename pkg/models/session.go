package models

// Identity is the session's user. Ready flips true once the identity
// provider has reported for the first time.
type Identity struct {
	UserID string `json:"userId"`
	Ready  bool   `json:"ready"`
}

// AdminSession is the admin-mode state derived from the navigation path.
type AdminSession struct {
	LoggedIn     bool `json:"loggedIn"`
	PanelVisible bool `json:"panelVisible"`
}

// StatusKind classifies the outcome of a user-initiated operation.
type StatusKind string

const (
	StatusNone    StatusKind = ""
	StatusSuccess StatusKind = "success"
	StatusError   StatusKind = "error"
)

// Status is the transient result of a mutation. Success means the store
// accepted the write; local collections catch up on the next snapshot.
type Status struct {
	Kind    StatusKind `json:"kind"`
	Message string     `json:"message,omitempty"`
	Err     error      `json:"-"`
}

// Success builds a success status.
func Success(msg string) Status {
	return Status{Kind: StatusSuccess, Message: msg}
}

// Failure builds an error status from err.
func Failure(msg string, err error) Status {
	return Status{Kind: StatusError, Message: msg, Err: err}
}

// OK reports whether the status is a success.
func (s Status) OK() bool {
	return s.Kind == StatusSuccess
}
