package token

// Purpose binds a continuation token to exactly one flow step. The numeric
// value is what travels in the signed payload.
type Purpose int

const (
	PurposeCreate        Purpose = 100
	PurposeSignIn        Purpose = 200
	PurposePasswordReset Purpose = 300
	PurposePasswordBid   Purpose = 400
	PurposeEmailUpdate   Purpose = 600
	PurposeDeleteMember  Purpose = 700
)

// Valid reports whether p is one of the declared purposes.
func (p Purpose) Valid() bool {
	switch p {
	case PurposeCreate, PurposeSignIn, PurposePasswordReset, PurposePasswordBid, PurposeEmailUpdate, PurposeDeleteMember:
		return true
	default:
		return false
	}
}

func (p Purpose) String() string {
	switch p {
	case PurposeCreate:
		return "create"
	case PurposeSignIn:
		return "sign_in"
	case PurposePasswordReset:
		return "password_reset"
	case PurposePasswordBid:
		return "password_bid"
	case PurposeEmailUpdate:
		return "email_update"
	case PurposeDeleteMember:
		return "delete_member"
	default:
		return "unknown"
	}
}
