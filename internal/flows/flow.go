package flows

// Flow names one step of one operation. It appears in logs, audit events,
// metrics and interceptor contexts.
type Flow string

const (
	FlowCreateFirst         Flow = "create_first"
	FlowCreateVerify        Flow = "create_verify"
	FlowLoginFirst          Flow = "login_first"
	FlowLoginVerify         Flow = "login_verify"
	FlowChangeEmailFirst    Flow = "change_email_first"
	FlowChangeEmailVerify   Flow = "change_email_verify"
	FlowDeleteFirst         Flow = "delete_first"
	FlowDeleteVerify        Flow = "delete_verify"
	FlowResetPasswordFirst  Flow = "reset_password_first"
	FlowResetPasswordSecond Flow = "reset_password_second"
	FlowResetPasswordVerify Flow = "reset_password_verify"
	FlowAuthenticate        Flow = "authenticate"
	FlowLogout              Flow = "logout"
)

// Flows lists every flow step in a stable order.
var Flows = []Flow{
	FlowCreateFirst,
	FlowCreateVerify,
	FlowLoginFirst,
	FlowLoginVerify,
	FlowChangeEmailFirst,
	FlowChangeEmailVerify,
	FlowDeleteFirst,
	FlowDeleteVerify,
	FlowResetPasswordFirst,
	FlowResetPasswordSecond,
	FlowResetPasswordVerify,
	FlowAuthenticate,
	FlowLogout,
}

// Operation groups the steps of one flow; rate limit budgets are kept per
// operation.
func (f Flow) Operation() string {
	switch f {
	case FlowCreateFirst, FlowCreateVerify:
		return "create"
	case FlowLoginFirst, FlowLoginVerify:
		return "login"
	case FlowChangeEmailFirst, FlowChangeEmailVerify:
		return "change_email"
	case FlowDeleteFirst, FlowDeleteVerify:
		return "delete"
	case FlowResetPasswordFirst, FlowResetPasswordSecond, FlowResetPasswordVerify:
		return "reset_password"
	default:
		return string(f)
	}
}
