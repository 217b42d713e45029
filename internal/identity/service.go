// Package identity guards identity mutations behind the audit contract:
// every create, update, delete, restore, assessment, or evolution emits
// exactly one append-only audit entry with before/after snapshots, so an
// identity's full history can be reconstructed and any memory's influence
// traced in reverse.
package identity

import (
	"context"
	"fmt"

	"github.com/scrypster/animus/internal/storage"
	"github.com/scrypster/animus/pkg/types"
)

// Service is the only supported path for identity mutations. Writing
// through the raw IdentityStore skips the audit trail and breaks the
// reconstruction guarantee.
type Service struct {
	identities storage.IdentityStore
	audit      storage.AuditStore
}

// NewService creates the identity service.
func NewService(identities storage.IdentityStore, audit storage.AuditStore) *Service {
	return &Service{identities: identities, audit: audit}
}

// Create creates an anima's identity. The audit entry carries no
// before-state: there was nothing before.
func (s *Service) Create(ctx context.Context, identity *types.Identity, triggerSource string) error {
	if err := s.identities.CreateIdentity(ctx, identity); err != nil {
		return err
	}
	return s.append(ctx, &types.IdentityAuditEntry{
		IdentityID:    identity.ID,
		Action:        types.AuditCreate,
		TriggerSource: triggerSource,
		AfterState:    snapshot(identity),
		ChangeSummary: "identity created",
	})
}

// Update persists identity changes with before/after snapshots.
func (s *Service) Update(ctx context.Context, identity *types.Identity, triggerSource, changeSummary string) error {
	return s.mutate(ctx, identity, types.AuditUpdate, triggerSource, "", changeSummary)
}

// Evolve is an update driven by a synthesized memory; the audit entry keeps
// the provenance link to the memory that caused the change.
func (s *Service) Evolve(ctx context.Context, identity *types.Identity, sourceMemoryID, changeSummary string) error {
	return s.mutate(ctx, identity, types.AuditEvolve, "memory synthesis", sourceMemoryID, changeSummary)
}

func (s *Service) mutate(ctx context.Context, identity *types.Identity, action, triggerSource, sourceMemoryID, changeSummary string) error {
	before, err := s.identities.GetIdentity(ctx, identity.AnimaID)
	if err != nil {
		return fmt.Errorf("failed to load identity for audit: %w", err)
	}
	if err := s.identities.UpdateIdentity(ctx, identity); err != nil {
		return err
	}
	return s.append(ctx, &types.IdentityAuditEntry{
		IdentityID:     identity.ID,
		Action:         action,
		TriggerSource:  triggerSource,
		SourceMemoryID: sourceMemoryID,
		BeforeState:    snapshot(before),
		AfterState:     snapshot(identity),
		ChangeSummary:  changeSummary,
	})
}

// Delete soft-deletes the anima's identity.
func (s *Service) Delete(ctx context.Context, animaID, triggerSource string) error {
	identity, err := s.identities.GetIdentity(ctx, animaID)
	if err != nil {
		return err
	}
	if err := s.identities.DeleteIdentity(ctx, identity.ID); err != nil {
		return err
	}
	return s.append(ctx, &types.IdentityAuditEntry{
		IdentityID:    identity.ID,
		Action:        types.AuditDelete,
		TriggerSource: triggerSource,
		BeforeState:   snapshot(identity),
		AfterState:    snapshot(identity),
		ChangeSummary: "identity soft-deleted",
	})
}

// Restore clears the soft-delete flag on an identity.
func (s *Service) Restore(ctx context.Context, animaID, identityID, triggerSource string) error {
	if err := s.identities.RestoreIdentity(ctx, identityID); err != nil {
		return err
	}
	restored, err := s.identities.GetIdentity(ctx, animaID)
	if err != nil {
		return fmt.Errorf("failed to load restored identity: %w", err)
	}
	return s.append(ctx, &types.IdentityAuditEntry{
		IdentityID:    identityID,
		Action:        types.AuditRestore,
		TriggerSource: triggerSource,
		AfterState:    snapshot(restored),
		ChangeSummary: "identity restored",
	})
}

// Assess records an identity assessment without changing the identity: the
// before and after snapshots are identical and the change summary carries
// the assessment text.
func (s *Service) Assess(ctx context.Context, animaID, triggerSource, sourceMemoryID, assessment string) error {
	identity, err := s.identities.GetIdentity(ctx, animaID)
	if err != nil {
		return err
	}
	return s.append(ctx, &types.IdentityAuditEntry{
		IdentityID:     identity.ID,
		Action:         types.AuditAssess,
		TriggerSource:  triggerSource,
		SourceMemoryID: sourceMemoryID,
		BeforeState:    snapshot(identity),
		AfterState:     snapshot(identity),
		ChangeSummary:  assessment,
	})
}

// History returns the identity's full audit trail, oldest first.
func (s *Service) History(ctx context.Context, identityID string) ([]*types.IdentityAuditEntry, error) {
	return s.audit.ListAuditEntries(ctx, identityID)
}

// InfluencedBy returns the audit entries a memory drove, answering "which
// identities did memory X influence".
func (s *Service) InfluencedBy(ctx context.Context, memoryID string) ([]*types.IdentityAuditEntry, error) {
	return s.audit.ListAuditEntriesByMemory(ctx, memoryID)
}

func (s *Service) append(ctx context.Context, entry *types.IdentityAuditEntry) error {
	if err := s.audit.AppendAuditEntry(ctx, entry); err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// snapshot captures the auditable identity fields.
func snapshot(identity *types.Identity) map[string]interface{} {
	return map[string]interface{}{
		"personality_type":    identity.PersonalityType,
		"communication_style": identity.CommunicationStyle,
		"self_reflection":     identity.SelfReflection,
	}
}
