package flows

// Result is a successful flow outcome. Body is safe to return to the
// caller's client; System carries values that must not be (the raw
// one-time code, the reset token that is meant to travel by mail).
type Result[B, S any] struct {
	Status int
	Body   B
	System S
}

// TokenBody carries a continuation token.
type TokenBody struct {
	AlternateToken string `json:"alternate_token"`
}

// SessionBody carries a new session token.
type SessionBody struct {
	SessionToken string `json:"session_token,omitempty"`
}

// NoBody is the empty payload.
type NoBody struct{}

// CodeSystem carries the issued one-time code.
type CodeSystem struct {
	OneTimePassword string
}

// TokenSystem carries a token delivered out of band.
type TokenSystem struct {
	AlternateToken string
}
