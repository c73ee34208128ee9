package store_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exova-dev/bmx-tfs/internal/host"
	"github.com/exova-dev/bmx-tfs/tests/testutil"
)

func TestVariableUpsertAndGet(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := t.Context()

	scope := host.VariableScope{
		Application: "BillingApp", Release: "4.2", Build: "17",
	}

	require.NoError(t,
		s.UpsertVariable(ctx, scope, "TfsBuildNumber", "Nightly_20260821.3", false))

	v, err := s.GetVariable(ctx, scope, "TfsBuildNumber")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "Nightly_20260821.3", v.Value)
	assert.False(t, v.Sensitive)
	assert.Equal(t, "BillingApp", v.Application)

	// Upsert replaces in place.
	require.NoError(t,
		s.UpsertVariable(ctx, scope, "TfsBuildNumber", "Nightly_20260822.1", false))

	v, err = s.GetVariable(ctx, scope, "TfsBuildNumber")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "Nightly_20260822.1", v.Value)

	all, err := s.ListVariables(ctx, scope)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestVariableScopeIsolation(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := t.Context()

	a := host.VariableScope{Application: "App", Release: "1.0", Build: "1"}
	b := host.VariableScope{Application: "App", Release: "1.0", Build: "2"}

	require.NoError(t, s.UpsertVariable(ctx, a, "TfsBuildNumber", "b1", false))

	v, err := s.GetVariable(ctx, b, "TfsBuildNumber")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestVariableMissingReturnsNil(t *testing.T) {
	s := testutil.NewTestStore(t)

	v, err := s.GetVariable(t.Context(), host.VariableScope{
		Application: "App", Release: "1.0", Build: "1",
	}, "nope")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestRecordAndListArtifacts(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := t.Context()

	spec := host.ArtifactSpec{
		Application: "BillingApp", Release: "4.2", Build: "17",
		Deployable: "web", Name: "drop",
	}

	require.NoError(t, s.RecordArtifact(ctx, spec, 12))

	records, err := s.ListArtifacts(ctx, "BillingApp")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "drop", records[0].Name)
	assert.Equal(t, 12, records[0].FileCount)
	assert.Equal(t, "web", records[0].Deployable)
	assert.NotEmpty(t, records[0].ID)

	// Re-recording the same artifact identity replaces the row.
	require.NoError(t, s.RecordArtifact(ctx, spec, 13))

	records, err = s.ListArtifacts(ctx, "BillingApp")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 13, records[0].FileCount)

	// Other applications see nothing.
	records, err = s.ListArtifacts(ctx, "OtherApp")
	require.NoError(t, err)
	assert.Empty(t, records)
}
