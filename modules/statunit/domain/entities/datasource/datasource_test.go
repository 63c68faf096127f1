package datasource

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPriority_Permits(t *testing.T) {
	require.True(t, PriorityTrusted.Permits(true))
	require.True(t, PriorityTrusted.Permits(false))
	require.False(t, PriorityOk.Permits(true))
	require.True(t, PriorityOk.Permits(false))
	require.False(t, PriorityNotTrusted.Permits(false))
	require.False(t, Priority(0).Permits(false))
}

func TestAllowedOperation(t *testing.T) {
	require.True(t, OperationCreate.AllowsCreate())
	require.False(t, OperationCreate.AllowsAlter())
	require.True(t, OperationAlter.AllowsAlter())
	require.True(t, OperationCreateAndAlter.AllowsCreate())
	require.True(t, OperationCreateAndAlter.AllowsAlter())
}

func TestParse(t *testing.T) {
	p, err := ParsePriority("trusted")
	require.NoError(t, err)
	require.Equal(t, PriorityTrusted, p)

	o, err := ParseAllowedOperation("2")
	require.NoError(t, err)
	require.Equal(t, OperationAlter, o)

	u, err := ParseUploadType(" StatUnits ")
	require.NoError(t, err)
	require.Equal(t, UploadStatUnits, u)

	_, err = ParsePriority("paranoid")
	require.Error(t, err)
}
