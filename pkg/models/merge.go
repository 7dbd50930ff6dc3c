package models

// ContactInfoEdit is a manual contact-info correction supplied by the user at
// merge time. Edits apply to the retiring identity before the union so they
// are captured in the surviving record.
type ContactInfoEdit struct {
	ID        string `json:"id" validate:"required,uuid"`
	Value     string `json:"value,omitempty"`
	IsPrimary *bool  `json:"is_primary,omitempty"`
	IsSpam    *bool  `json:"is_spam,omitempty"`
}

// MergePersonsRequest is the request to merge two person records
type MergePersonsRequest struct {
	FirstPersonID    string            `json:"first_person_id" validate:"required,uuid"`
	SecondPersonID   string            `json:"second_person_id" validate:"required,uuid"`
	ContactInfoEdits []ContactInfoEdit `json:"contact_info_edits,omitempty" validate:"omitempty,dive"`
}

// MergeResult contains the outcome of a person merge
type MergeResult struct {
	Survivor                 *Person  `json:"survivor"`
	RetiredPersonID          string   `json:"retired_person_id"`
	AffectedPartyIDs         []string `json:"affected_party_ids"`
	MigratedApplicationIDs   []string `json:"migrated_application_ids,omitempty"`
	SupersededApplicationIDs []string `json:"superseded_application_ids,omitempty"`
	CopiedApplicationIDs     []string `json:"copied_application_ids,omitempty"`
}
