package flows

import "encoding/json"

type CreateRequest struct {
	Name     string
	Email    string
	Password string
	IP       string
	// Custom is stored verbatim and must be valid JSON when set.
	Custom json.RawMessage
}

type CreateVerifyRequest struct {
	AlternateToken string
	Code           string
	IP             string
	Device         string
}

// LoginRequest identifies the account by Name or, when Name is empty, by
// Email.
type LoginRequest struct {
	Name     string
	Email    string
	Password string
	IP       string
	Device   string
}

type LoginVerifyRequest struct {
	AlternateToken string
	Code           string
	IP             string
	Device         string
}

type ChangeEmailRequest struct {
	SessionToken string
	NewEmail     string
	Password     string
	IP           string
	Device       string
}

type ChangeEmailVerifyRequest struct {
	SessionToken   string
	AlternateToken string
	Code           string
	IP             string
	Device         string
}

type DeleteRequest struct {
	SessionToken string
	Password     string
	IP           string
	Device       string
}

type DeleteVerifyRequest struct {
	SessionToken   string
	AlternateToken string
	Code           string
	IP             string
	Device         string
}

// ResetRequest identifies the account by Name or, when Name is empty, by
// Email.
type ResetRequest struct {
	Name  string
	Email string
}

type ResetSecondRequest struct {
	AlternateToken string
}

type ResetVerifyRequest struct {
	AlternateToken string
	NewPassword    string
	IP             string
	Device         string
}
