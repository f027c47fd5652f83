package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"missioncontrol/internal/errors"
)

// openTestStore connects to MC_TEST_DATABASE_URL and applies the schema.
// Tests are skipped when no database is configured.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("MC_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("MC_TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	st, err := Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(st.Close)
	require.NoError(t, st.ExecSQL(ctx, Schema))
	return st
}

func seedIntegration(t *testing.T, st *Store) Integration {
	t.Helper()
	ctx := context.Background()
	id, err := st.UpsertIntegration(ctx, Integration{
		Name:             "openai-" + uuid.NewString(),
		Type:             TypeAPIKey,
		Provider:         "openai",
		CredentialSource: ".env:OPENAI_API_KEY",
	})
	require.NoError(t, err)
	in, err := st.FindIntegrationByID(ctx, id)
	require.NoError(t, err)
	return in
}

func TestFindIntegrationByID_NotFound(t *testing.T) {
	st := openTestStore(t)

	_, err := st.FindIntegrationByID(context.Background(), "missing-"+uuid.NewString())
	assert.ErrorIs(t, err, errors.ErrIntegrationNotFound)
}

func TestUpsertIntegration_Defaults(t *testing.T) {
	st := openTestStore(t)

	in := seedIntegration(t, st)
	assert.Equal(t, StatusUnknown, in.Status)
	assert.Equal(t, "openai", in.Provider)
	assert.Nil(t, in.LastValidated)
	assert.Nil(t, in.ValidationMessage)
}

func TestRecordIntegrationTest_WritesBoth(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	in := seedIntegration(t, st)

	at := time.Now().UTC().Truncate(time.Millisecond)
	updated, err := st.RecordIntegrationTest(ctx, HealthCheck{
		TargetType: TargetIntegration,
		TargetID:   in.ID,
		Status:     CheckFail,
		Message:    "Environment variable OPENAI_API_KEY is not set",
		DurationMS: 3,
		CheckedAt:  at,
	}, StatusUpdate{Status: StatusBroken, Message: "Environment variable OPENAI_API_KEY is not set", At: at})
	require.NoError(t, err)

	assert.Equal(t, StatusBroken, updated.Status)
	require.NotNil(t, updated.LastValidated)
	assert.True(t, updated.LastValidated.Equal(at))

	checks, err := st.ListHealthChecks(ctx, TargetIntegration, in.ID, 10)
	require.NoError(t, err)
	require.Len(t, checks, 1)
	assert.Equal(t, CheckFail, checks[0].Status)
}

func TestRecordIntegrationTest_LastValidatedMonotonic(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	in := seedIntegration(t, st)

	later := time.Now().UTC().Truncate(time.Millisecond)
	earlier := later.Add(-time.Minute)

	_, err := st.RecordIntegrationTest(ctx, HealthCheck{TargetType: TargetIntegration, TargetID: in.ID, Status: CheckPass, CheckedAt: later},
		StatusUpdate{Status: StatusConnected, Message: "API key valid", At: later})
	require.NoError(t, err)
	updated, err := st.RecordIntegrationTest(ctx, HealthCheck{TargetType: TargetIntegration, TargetID: in.ID, Status: CheckFail, CheckedAt: earlier},
		StatusUpdate{Status: StatusBroken, Message: "Invalid API key (401)", At: earlier})
	require.NoError(t, err)

	require.NotNil(t, updated.LastValidated)
	assert.True(t, updated.LastValidated.Equal(later))
	assert.Equal(t, StatusBroken, updated.Status)
}

func TestRecordIntegrationTest_UnknownIDRollsBack(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	id := "missing-" + uuid.NewString()

	_, err := st.RecordIntegrationTest(ctx, HealthCheck{TargetType: TargetIntegration, TargetID: id, Status: CheckPass},
		StatusUpdate{Status: StatusConnected})
	assert.ErrorIs(t, err, errors.ErrIntegrationNotFound)

	checks, err := st.ListHealthChecks(ctx, TargetIntegration, id, 10)
	require.NoError(t, err)
	assert.Empty(t, checks)
}
