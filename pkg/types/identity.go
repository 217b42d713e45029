package types

import "time"

// The 16 MBTI personality types an identity may be classified as.
const (
	PersonalityISTJ = "ISTJ"
	PersonalityISFJ = "ISFJ"
	PersonalityINFJ = "INFJ"
	PersonalityINTJ = "INTJ"
	PersonalityISTP = "ISTP"
	PersonalityISFP = "ISFP"
	PersonalityINFP = "INFP"
	PersonalityINTP = "INTP"
	PersonalityESTP = "ESTP"
	PersonalityESFP = "ESFP"
	PersonalityENFP = "ENFP"
	PersonalityENTP = "ENTP"
	PersonalityESTJ = "ESTJ"
	PersonalityESFJ = "ESFJ"
	PersonalityENFJ = "ENFJ"
	PersonalityENTJ = "ENTJ"
)

// ValidPersonalityTypes contains all 16 personality type values.
var ValidPersonalityTypes = []string{
	PersonalityISTJ, PersonalityISFJ, PersonalityINFJ, PersonalityINTJ,
	PersonalityISTP, PersonalityISFP, PersonalityINFP, PersonalityINTP,
	PersonalityESTP, PersonalityESFP, PersonalityENFP, PersonalityENTP,
	PersonalityESTJ, PersonalityESFJ, PersonalityENFJ, PersonalityENTJ,
}

// IsValidPersonalityType checks if the given type is one of the 16 types.
// Empty string is considered valid (unclassified).
func IsValidPersonalityType(pt string) bool {
	if pt == "" {
		return true
	}
	for _, v := range ValidPersonalityTypes {
		if pt == v {
			return true
		}
	}
	return false
}

// Identity is the emergent behavioral fingerprint of an anima, 1:1 with its
// owner. SelfReflection holds free-form semantic keys written back by the
// anima itself during curation (essence, purpose, principles, epistemology).
// Every mutation of an Identity must produce an IdentityAuditEntry.
type Identity struct {
	ID                 string                 `json:"id"`
	AnimaID            string                 `json:"anima_id"`
	PersonalityType    string                 `json:"personality_type,omitempty"`
	SelfReflection     map[string]interface{} `json:"self_reflection,omitempty"`
	CommunicationStyle string                 `json:"communication_style,omitempty"`
	CreatedAt          time.Time              `json:"created_at"`
	UpdatedAt          time.Time              `json:"updated_at"`
	DeletedAt          *time.Time             `json:"deleted_at,omitempty"`
}

// Identity audit actions.
const (
	AuditCreate  = "CREATE"
	AuditUpdate  = "UPDATE"
	AuditDelete  = "DELETE"
	AuditRestore = "RESTORE"
	AuditAssess  = "ASSESS" // personality assessment/reassessment
	AuditEvolve  = "EVOLVE" // curation-driven evolution
)

// IsValidAuditAction checks if the given action is a known audit action.
func IsValidAuditAction(action string) bool {
	switch action {
	case AuditCreate, AuditUpdate, AuditDelete, AuditRestore, AuditAssess, AuditEvolve:
		return true
	}
	return false
}

// IdentityAuditEntry is one immutable row in the identity audit trail.
// Entries are append-only: never updated or deleted after insertion. They
// form a total order per identity by CreatedAt, so the full evolution of an
// identity can be reconstructed, and SourceMemoryID supports the reverse
// lookup "which identities did memory X influence".
type IdentityAuditEntry struct {
	ID             string                 `json:"id"`
	IdentityID     string                 `json:"identity_id"`
	Action         string                 `json:"action"`
	TriggerSource  string                 `json:"trigger_source,omitempty"` // 'dreamer', 'manual', 'synthesis'
	SourceMemoryID string                 `json:"source_memory_id,omitempty"`
	BeforeState    map[string]interface{} `json:"before_state,omitempty"` // absent for CREATE
	AfterState     map[string]interface{} `json:"after_state"`
	ChangeSummary  string                 `json:"change_summary,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}
