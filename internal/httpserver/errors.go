package httpserver

const (
	ErrInvalidJSON      = "invalid json"
	ErrBadPayload       = "bad payload"
	ErrInvalidSignature = "invalid signature"
	ErrDependency       = "dependency error"
)
