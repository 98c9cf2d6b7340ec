package store

// Column names an account attribute for projections. The values are the
// column names used by the SQL backends.
type Column string

const (
	ColumnID           Column = "id"
	ColumnName         Column = "name"
	ColumnEmail        Column = "email"
	ColumnPasswordHash Column = "password_hash"
	ColumnRole         Column = "role"
	ColumnStatus       Column = "status"
	ColumnVersion      Column = "version"
	ColumnCustom       Column = "custom"
	ColumnCodeHash     Column = "code_hash"
	ColumnIP           Column = "last_ip"
	ColumnCreatedAt    Column = "created_at"
	ColumnUpdatedAt    Column = "updated_at"
)

// AllColumns lists every account column in table order.
var AllColumns = []Column{
	ColumnID,
	ColumnName,
	ColumnEmail,
	ColumnPasswordHash,
	ColumnRole,
	ColumnStatus,
	ColumnVersion,
	ColumnCustom,
	ColumnCodeHash,
	ColumnIP,
	ColumnCreatedAt,
	ColumnUpdatedAt,
}

// Known reports whether c is an account column.
func (c Column) Known() bool {
	for _, k := range AllColumns {
		if k == c {
			return true
		}
	}
	return false
}

// Calibrate merges the caller's requested projection with the columns a flow
// needs. A nil or empty request means the full row and yields nil. Unknown
// names are dropped and duplicates removed; table order is preserved.
func Calibrate(requested []Column, required ...Column) []Column {
	if len(requested) == 0 {
		return nil
	}
	want := make(map[Column]bool, len(requested)+len(required))
	for _, c := range requested {
		want[c] = true
	}
	for _, c := range required {
		want[c] = true
	}
	out := make([]Column, 0, len(want))
	for _, c := range AllColumns {
		if want[c] {
			out = append(out, c)
		}
	}
	return out
}

// Project returns a copy of a holding only cols. A nil cols returns a
// unchanged.
func Project(a Account, cols []Column) Account {
	if cols == nil {
		return a
	}
	var out Account
	for _, c := range cols {
		switch c {
		case ColumnID:
			out.ID = a.ID
		case ColumnName:
			out.Name = a.Name
		case ColumnEmail:
			out.Email = a.Email
		case ColumnPasswordHash:
			out.PasswordHash = a.PasswordHash
		case ColumnRole:
			out.Role = a.Role
		case ColumnStatus:
			out.Status = a.Status
		case ColumnVersion:
			out.Version = a.Version
		case ColumnCustom:
			out.Custom = a.Custom
		case ColumnCodeHash:
			out.CodeHash = a.CodeHash
		case ColumnIP:
			out.IP = a.IP
		case ColumnCreatedAt:
			out.CreatedAt = a.CreatedAt
		case ColumnUpdatedAt:
			out.UpdatedAt = a.UpdatedAt
		}
	}
	return out
}
