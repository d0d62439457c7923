package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrecedenceOrder(t *testing.T) {
	require.Equal(t, [...]Role{Administrator, Secretary, Operator, Citizen}, Precedence)
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name  string
		flags Flags
		want  Role
	}{
		{"nenhum", Flags{}, None},
		{"cidadao", Flags{Cidadao: true}, Citizen},
		{"operador", Flags{Operador: true}, Operator},
		{"secretario", Flags{Secretario: true}, Secretary},
		{"administrador", Flags{Administrador: true}, Administrator},
		{"todos", Flags{Cidadao: true, Operador: true, Secretario: true, Administrador: true}, Administrator},
		{"secretario e operador", Flags{Operador: true, Secretario: true}, Secretary},
		{"operador e cidadao", Flags{Cidadao: true, Operador: true}, Operator},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Resolve(tc.flags))
		})
	}
}

func TestFieldsPerRole(t *testing.T) {
	assert.Empty(t, Fields(None))

	assert.Contains(t, Fields(Administrator), FieldDepartments)
	assert.Contains(t, Fields(Secretary), FieldDepartments)
	assert.NotContains(t, Fields(Citizen), FieldDepartments)
	assert.NotContains(t, Fields(Citizen), FieldReturnReason)

	for _, role := range Precedence {
		fields := Fields(role)
		for _, f := range []string{FieldID, FieldType, FieldStatus, FieldDescription, FieldResolutionNote, FieldResolutionImage} {
			assert.Contains(t, fields, f, "%s deveria ver %s", role, f)
		}
	}
}

func TestFieldsReturnsCopy(t *testing.T) {
	fields := Fields(Citizen)
	fields[0] = "alterado"
	assert.Equal(t, FieldID, Fields(Citizen)[0])
}

func TestAllowed(t *testing.T) {
	assert.True(t, Allowed(Citizen, OpCreate))
	assert.True(t, Allowed(Administrator, OpCreate))
	assert.False(t, Allowed(Operator, OpCreate))
	assert.False(t, Allowed(Secretary, OpCreate))

	assert.True(t, Allowed(Secretary, OpAssign))
	assert.False(t, Allowed(Administrator, OpAssign))

	// administrador não passa pelos portões de update e resolve
	assert.False(t, Allowed(Administrator, OpUpdate))
	assert.False(t, Allowed(Administrator, OpResolve))
	assert.True(t, Allowed(Operator, OpResolve))

	for _, op := range []Operation{OpCreate, OpUpdate, OpAssign, OpReturn, OpResolve, OpDelete} {
		assert.False(t, Allowed(None, op), string(op))
	}
	assert.True(t, Allowed(None, OpList))
	assert.True(t, Allowed(None, OpGet))
}
