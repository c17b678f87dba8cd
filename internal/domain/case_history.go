package domain

import "time"

// CaseHistory 病例（聚合根：一个 client、一个 provider、一份 intake、若干 session log）
type CaseHistory struct {
	ID         string    `json:"id"`
	ClientID   string    `json:"clientId"`
	ProviderID string    `json:"providerId"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`

	Client      *CaseParty    `json:"client,omitempty"`
	Provider    *CaseParty    `json:"provider,omitempty"`
	IntakeForm  *IntakeForm   `json:"intakeForm,omitempty"`
	SessionLogs []*SessionLog `json:"sessionLogs,omitempty"`
	Lifecycle   *Lifecycle    `json:"lifecycle,omitempty"`
}

// IntakeForm 对应 intake_forms 表（client 提交后只允许 provider 写 ProviderNotes）
type IntakeForm struct {
	ID                  string    `json:"id"`
	CaseHistoryID       string    `json:"caseHistoryId"`
	PresentingProblem   *string   `json:"presentingProblem,omitempty"`
	MedicalHistory      *string   `json:"medicalHistory,omitempty"`
	MentalHealthHistory *string   `json:"mentalHealthHistory,omitempty"`
	Medications         *string   `json:"medications,omitempty"`
	ConsentAcknowledged bool      `json:"consentAcknowledged"`
	FreeTextNotes       *string   `json:"freeTextNotes,omitempty"`
	ProviderNotes       *string   `json:"providerNotes,omitempty"`
	SubmittedAt         time.Time `json:"submittedAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// IntakeSubmission client-authored intake fields (write-once).
type IntakeSubmission struct {
	PresentingProblem   *string
	MedicalHistory      *string
	MentalHealthHistory *string
	Medications         *string
	ConsentAcknowledged bool
	FreeTextNotes       *string
}

// SessionLog 对应 session_logs 表（只追加）
// ClientID/ProviderID are copied from the parent case when the row is written.
type SessionLog struct {
	ID                    string    `json:"id"`
	CaseHistoryID         string    `json:"caseHistoryId"`
	ProviderID            string    `json:"providerId"`
	ClientID              string    `json:"clientId"`
	SessionDate           time.Time `json:"sessionDate"`
	PresentingTopics      *string   `json:"presentingTopics,omitempty"`
	TherapistObservations *string   `json:"therapistObservations,omitempty"`
	ClientAffect          *string   `json:"clientAffect,omitempty"`
	InterventionsUsed     *string   `json:"interventionsUsed,omitempty"`
	ProgressNotes         *string   `json:"progressNotes,omitempty"`
	CreatedAt             time.Time `json:"createdAt"`
	UpdatedAt             time.Time `json:"updatedAt"`
}

// SessionNotes provider-authored session fields.
type SessionNotes struct {
	SessionDate           *time.Time
	PresentingTopics      *string
	TherapistObservations *string
	ClientAffect          *string
	InterventionsUsed     *string
	ProgressNotes         *string
}

// OwnerFilter selects cases by exactly one participant column.
type OwnerFilter struct {
	ClientID   string
	ProviderID string
}
