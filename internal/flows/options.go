package flows

import (
	"time"

	"github.com/MrEthical07/twostep/notify"
	"github.com/MrEthical07/twostep/store"
)

// Common holds the options every flow step recognizes. The zero value
// selects the defaults.
type Common struct {
	// RolePermissionLevel is the minimum role the account must hold.
	// Zero means store.RoleUser.
	RolePermissionLevel store.Role
	// SendNotice gates the notification call. Nil means true.
	SendNotice *bool
	// MailFormat overrides the default template field by field.
	MailFormat notify.Template
	// Columns narrows the identity lookup. Columns the flow needs are
	// always added.
	Columns []store.Column
	Hooks   []Hook
}

type settings struct {
	role   store.Role
	notice bool
	mail   notify.Template
	cols   []store.Column
	hooks  []Hook
}

func (c Common) resolve(mail notify.Template, required ...store.Column) settings {
	role := c.RolePermissionLevel
	if role == 0 {
		role = store.RoleUser
	}
	return settings{
		role:   role,
		notice: boolOr(c.SendNotice, true),
		mail:   c.MailFormat.Merge(mail),
		cols:   store.Calibrate(c.Columns, required...),
		hooks:  c.Hooks,
	}
}

// Bool returns a pointer to v for the optional boolean fields.
func Bool(v bool) *bool {
	return &v
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// CreateFirstOptions configures account creation.
type CreateFirstOptions struct {
	// Role is the initial role of the account. Zero means store.RoleUser.
	Role       store.Role
	SendNotice *bool
	MailFormat notify.Template
	Hooks      []Hook
	TTL        time.Duration
}

// CreateVerifyOptions configures account activation.
type CreateVerifyOptions struct {
	Common
}

// LoginFirstOptions configures the password step of login.
type LoginFirstOptions struct {
	Common
	TTL time.Duration
}

// LoginVerifyOptions configures the code step of login.
type LoginVerifyOptions struct {
	Common
	// ForceAllLogout revokes every session of the account before issuing the
	// new one. Nil means true; false revokes only the acting device.
	ForceAllLogout *bool
}

// ChangeEmailFirstOptions configures the request step of an email change.
type ChangeEmailFirstOptions struct {
	Common
	// RequirePassword re-checks the current password.
	RequirePassword bool
	TTL             time.Duration
}

// ChangeEmailVerifyOptions configures the commit step of an email change.
type ChangeEmailVerifyOptions struct {
	Common
	// ForceAllLogout rotates every session and returns a new token for the
	// acting device. Nil means true; false leaves sessions untouched.
	ForceAllLogout *bool
}

// DeleteFirstOptions configures the request step of account deletion.
type DeleteFirstOptions struct {
	Common
	RequirePassword bool
	TTL             time.Duration
}

// DeleteVerifyOptions configures the commit step of account deletion.
type DeleteVerifyOptions struct {
	Common
	// PhysicalDeletion removes the row. Nil means true; false marks the
	// account inactive.
	PhysicalDeletion *bool
	// OverwriteOnLogicalDeletion prefixes name and email with the deletion
	// time so both can be registered again. Nil means true. Ignored for
	// physical deletion.
	OverwriteOnLogicalDeletion *bool
}

// ResetPasswordFirstOptions configures the request step of a password
// reset.
type ResetPasswordFirstOptions struct {
	Common
	TTL time.Duration
}

// ResetPasswordSecondOptions configures the bid exchange.
type ResetPasswordSecondOptions struct {
	Columns []store.Column
	// TTL overrides the bid token lifetime.
	TTL time.Duration
}

// ResetPasswordVerifyOptions configures the commit step of a password
// reset.
type ResetPasswordVerifyOptions struct {
	Common
	// ForceAllLogout revokes every session before issuing the new one. Nil
	// means true.
	ForceAllLogout *bool
}
