package models

import "time"

// Person is a customer identity record. Once MergedWith is set the record is
// terminal: no contact-info, application, or party-membership mutation may
// target it directly.
type Person struct {
	ID            string     `json:"id" db:"id"`
	TenantID      string     `json:"tenant_id" db:"tenant_id"`
	FullName      string     `json:"full_name" db:"full_name"`
	PreferredName string     `json:"preferred_name" db:"preferred_name"`
	MergedWith    *string    `json:"merged_with,omitempty" db:"merged_with"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// IsMerged reports whether the person has been retired into another record.
func (p *Person) IsMerged() bool {
	return p.MergedWith != nil && *p.MergedWith != ""
}

// ContactInfoType is the channel kind of a contact entry
type ContactInfoType string

const (
	ContactInfoTypePhone ContactInfoType = "phone"
	ContactInfoTypeEmail ContactInfoType = "email"
)

// ContactInfo is a single phone/email entry belonging to a person
type ContactInfo struct {
	ID        string          `json:"id" db:"id"`
	TenantID  string          `json:"tenant_id" db:"tenant_id"`
	PersonID  string          `json:"person_id" db:"person_id"`
	Type      ContactInfoType `json:"type" db:"type"`
	Value     string          `json:"value" db:"value"`
	IsPrimary bool            `json:"is_primary" db:"is_primary"`
	IsSpam    bool            `json:"is_spam" db:"is_spam"`
	Metadata  []byte          `json:"metadata,omitempty" db:"metadata"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// CommonUser links a person to an external identity-provider account
type CommonUser struct {
	ID             string    `json:"id" db:"id"`
	TenantID       string    `json:"tenant_id" db:"tenant_id"`
	PersonID       string    `json:"person_id" db:"person_id"`
	ExternalUserID string    `json:"external_user_id" db:"external_user_id"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// NotificationUnsubscription records an opt-out; at most one per
// (person, template-setting) pair.
type NotificationUnsubscription struct {
	ID                string    `json:"id" db:"id"`
	TenantID          string    `json:"tenant_id" db:"tenant_id"`
	PersonID          string    `json:"person_id" db:"person_id"`
	TemplateSettingID string    `json:"template_setting_id" db:"template_setting_id"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}
