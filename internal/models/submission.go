package models

import "time"

type Kind string

const (
	KindJobApplication Kind = "job_application"
	KindComplaint      Kind = "complaint"
)

// StoragePrefix is the leading token of uploaded object names.
func (k Kind) StoragePrefix() string {
	switch k {
	case KindJobApplication:
		return "HV"
	case KindComplaint:
		return "QUEJA"
	default:
		return "FORM"
	}
}

// Attachment references an uploaded object that is already publicly readable.
type Attachment struct {
	StorageID string `json:"storage_id"`
	PublicURL string `json:"public_url"`
}

// RequestOrigin is captured for audit only.
type RequestOrigin struct {
	IP        string `json:"ip"`
	UserAgent string `json:"user_agent"`
}

// JobApplication rows are written once and never updated.
type JobApplication struct {
	ID       string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name     string `gorm:"column:nombre;type:text;not null" json:"nombre"`
	Email    string `gorm:"column:email;type:text;not null" json:"email"`
	Phone    string `gorm:"column:telefono;type:text;not null" json:"telefono"`
	Position string `gorm:"column:cargo;type:text;not null" json:"cargo"`
	Message  string `gorm:"column:mensaje;type:text" json:"mensaje"`

	AttachmentID  string `gorm:"column:archivo_id;type:text" json:"archivo_id"`
	AttachmentURL string `gorm:"column:archivo_url;type:text" json:"archivo_url"`

	SubmittedAt time.Time `gorm:"column:submitted_at;not null;index" json:"submitted_at"`
	IP          string    `gorm:"column:ip;type:text" json:"ip"`
	UserAgent   string    `gorm:"column:user_agent;type:text" json:"user_agent"`
}

func (JobApplication) TableName() string { return "postulaciones" }

type Complaint struct {
	ID      string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name    string `gorm:"column:nombre;type:text;not null" json:"nombre"`
	Email   string `gorm:"column:email;type:text;not null" json:"email"`
	Phone   string `gorm:"column:telefono;type:text;not null" json:"telefono"`
	Branch  string `gorm:"column:sucursal;type:text;not null" json:"sucursal"`
	Subject string `gorm:"column:asunto;type:text;not null" json:"asunto"`
	Message string `gorm:"column:mensaje;type:text;not null" json:"mensaje"`

	AttachmentID  string `gorm:"column:archivo_id;type:text" json:"archivo_id"`
	AttachmentURL string `gorm:"column:archivo_url;type:text" json:"archivo_url"`

	SubmittedAt time.Time `gorm:"column:submitted_at;not null;index" json:"submitted_at"`
	IP          string    `gorm:"column:ip;type:text" json:"ip"`
	UserAgent   string    `gorm:"column:user_agent;type:text" json:"user_agent"`
}

func (Complaint) TableName() string { return "quejas" }
