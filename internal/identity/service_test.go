package identity

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/animus/internal/storage/sqlite"
	"github.com/scrypster/animus/pkg/types"
)

func newTestService(t *testing.T) (*Service, *sqlite.Store, *types.Anima) {
	t.Helper()
	store, err := sqlite.NewStore(filepath.Join(t.TempDir(), "animus.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	anima := &types.Anima{Name: "Echo"}
	require.NoError(t, store.CreateAnima(context.Background(), anima))
	return NewService(store, store), store, anima
}

func createIdentity(t *testing.T, svc *Service, animaID string) *types.Identity {
	t.Helper()
	identity := &types.Identity{
		AnimaID:            animaID,
		PersonalityType:    "INFJ",
		CommunicationStyle: "warm",
	}
	require.NoError(t, svc.Create(context.Background(), identity, "manual"))
	return identity
}

func TestCreate_AuditEntryHasNoBeforeState(t *testing.T) {
	svc, _, anima := newTestService(t)
	identity := createIdentity(t, svc, anima.ID)

	history, err := svc.History(context.Background(), identity.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)

	entry := history[0]
	assert.Equal(t, types.AuditCreate, entry.Action)
	assert.Equal(t, "manual", entry.TriggerSource)
	assert.Empty(t, entry.BeforeState, "nothing existed before a create")
	assert.Equal(t, "INFJ", entry.AfterState["personality_type"])
}

func TestUpdate_AppendsExactlyOneEntryWithSnapshots(t *testing.T) {
	svc, _, anima := newTestService(t)
	identity := createIdentity(t, svc, anima.ID)
	ctx := context.Background()

	identity.CommunicationStyle = "direct"
	require.NoError(t, svc.Update(ctx, identity, "manual", "toned down the warmth"))

	history, err := svc.History(ctx, identity.ID)
	require.NoError(t, err)
	require.Len(t, history, 2, "one entry per mutation, no more")

	entry := history[1]
	assert.Equal(t, types.AuditUpdate, entry.Action)
	assert.Equal(t, "warm", entry.BeforeState["communication_style"])
	assert.Equal(t, "direct", entry.AfterState["communication_style"])
	assert.Equal(t, "toned down the warmth", entry.ChangeSummary)
}

func TestEvolve_CarriesSourceMemory(t *testing.T) {
	svc, store, anima := newTestService(t)
	identity := createIdentity(t, svc, anima.ID)
	ctx := context.Background()

	memoryID, _, err := store.CreateMemoryWithProvenance(ctx, &types.Memory{
		AnimaID: anima.ID, Summary: "learned to be more patient",
	}, nil, nil)
	require.NoError(t, err)

	identity.PersonalityType = "INFP"
	require.NoError(t, svc.Evolve(ctx, identity, memoryID, "patience reshaped the type"))

	history, err := svc.History(ctx, identity.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, types.AuditEvolve, history[1].Action)
	assert.Equal(t, "memory synthesis", history[1].TriggerSource)
	assert.Equal(t, memoryID, history[1].SourceMemoryID)
}

func TestInfluencedBy_ReverseLookup(t *testing.T) {
	svc, store, anima := newTestService(t)
	identity := createIdentity(t, svc, anima.ID)
	ctx := context.Background()

	memoryID, _, err := store.CreateMemoryWithProvenance(ctx, &types.Memory{
		AnimaID: anima.ID, Summary: "a formative experience",
	}, nil, nil)
	require.NoError(t, err)

	require.NoError(t, svc.Assess(ctx, anima.ID, "dreamer", memoryID, "still an INFJ"))

	entries, err := svc.InfluencedBy(ctx, memoryID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, types.AuditAssess, entries[0].Action)
	assert.Equal(t, identity.ID, entries[0].IdentityID)

	// Assessments do not change the identity.
	assert.Equal(t, entries[0].BeforeState, entries[0].AfterState)
	assert.Equal(t, "still an INFJ", entries[0].ChangeSummary)
}

func TestDeleteAndRestore_EachAudited(t *testing.T) {
	svc, store, anima := newTestService(t)
	identity := createIdentity(t, svc, anima.ID)
	ctx := context.Background()

	require.NoError(t, svc.Delete(ctx, anima.ID, "manual"))
	_, err := store.GetIdentity(ctx, anima.ID)
	require.Error(t, err, "deleted identity is hidden from lookups")

	require.NoError(t, svc.Restore(ctx, anima.ID, identity.ID, "manual"))
	restored, err := store.GetIdentity(ctx, anima.ID)
	require.NoError(t, err)
	assert.Equal(t, identity.ID, restored.ID)

	history, err := svc.History(ctx, identity.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, types.AuditDelete, history[1].Action)
	assert.Equal(t, types.AuditRestore, history[2].Action)
}
