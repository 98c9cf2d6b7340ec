package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalibrateEmptyRequestMeansFullRow(t *testing.T) {
	assert.Nil(t, Calibrate(nil, ColumnName, ColumnStatus))
	assert.Nil(t, Calibrate([]Column{}, ColumnName))
}

func TestCalibrateMergesRequiredInTableOrder(t *testing.T) {
	got := Calibrate([]Column{ColumnCustom, ColumnName, "bogus", ColumnCustom}, ColumnStatus, ColumnName)
	require.Equal(t, []Column{ColumnName, ColumnStatus, ColumnCustom}, got)
}

func TestProjectKeepsOnlyRequestedFields(t *testing.T) {
	hash := "h"
	a := Account{Name: "alice", Email: "a@x.com", PasswordHash: "p", Role: RoleUser, Status: StatusActive, Version: 3, CodeHash: &hash}

	got := Project(a, []Column{ColumnName, ColumnVersion})
	assert.Equal(t, "alice", got.Name)
	assert.Equal(t, int64(3), got.Version)
	assert.Empty(t, got.Email)
	assert.Empty(t, got.PasswordHash)
	assert.Nil(t, got.CodeHash)

	assert.Equal(t, a, Project(a, nil))
}

func TestSessionFilterShapes(t *testing.T) {
	assert.NoError(t, AllSessions("alice").Validate())
	assert.NoError(t, DeviceSession("alice", "1.1.1.1", "phone").Validate())
	assert.NoError(t, DeviceSession("alice", "1.1.1.1", "").Validate())
	assert.NoError(t, DeviceSession("alice", "", "").Validate())
	assert.ErrorIs(t, SessionFilter{}.Validate(), ErrInvalidFilter)
	assert.ErrorIs(t, DeviceSession("", "1.1.1.1", "phone").Validate(), ErrInvalidFilter)
	assert.ErrorIs(t, SessionFilter{Name: "alice", IP: "1.1.1.1"}.Validate(), ErrInvalidFilter)
	assert.ErrorIs(t, SessionFilter{Name: "alice", Scope: SessionScope(7)}.Validate(), ErrInvalidFilter)
	assert.True(t, DeviceSession("a", "", "").SingleDevice())
	assert.False(t, AllSessions("a").SingleDevice())
}
