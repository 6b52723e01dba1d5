package repair

import (
	"time"

	"gorm.io/gorm"
)

type RequestType string

const (
	TypeInstantHelp RequestType = "instant-help"
	TypeHandyman    RequestType = "handyman"
)

func (t RequestType) Valid() bool {
	return t == TypeInstantHelp || t == TypeHandyman
}

// Party is one side of a request: the requester who submitted it or the
// professional bound to it.
type Party string

const (
	PartyRequester    Party = "requester"
	PartyProfessional Party = "professional"
)

func (p Party) Valid() bool {
	return p == PartyRequester || p == PartyProfessional
}

type SenderRole string

const (
	SenderRequester    SenderRole = "requester"
	SenderProfessional SenderRole = "professional"
	SenderSystem       SenderRole = "system"
)

func (r SenderRole) Valid() bool {
	return r == SenderRequester || r == SenderProfessional || r == SenderSystem
}

// Actor is the caller identity as supplied by the identity provider.
type Actor struct {
	ID   string
	Role Party
}

// Attachment describes an uploaded file. Content lives in blob storage.
type Attachment struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	Size int64  `json:"size"`
}

type Request struct {
	ID          string      `gorm:"primaryKey;size:26" json:"id"`
	RequesterID string      `gorm:"type:varchar(64);index;not null" json:"requester_id"`
	Type        RequestType `gorm:"type:varchar(16);not null" json:"type"`
	Title       string      `gorm:"type:varchar(255);not null" json:"title"`
	Description string      `gorm:"type:text;not null" json:"description"`
	Status      Status      `gorm:"type:varchar(16);index;not null" json:"status"`

	ProblemType   string       `gorm:"type:varchar(64)" json:"problem_type,omitempty"`
	ServiceType   string       `gorm:"type:varchar(64)" json:"service_type,omitempty"`
	PreferredDate string       `gorm:"type:varchar(32)" json:"preferred_date,omitempty"`
	PreferredTime string       `gorm:"type:varchar(32)" json:"preferred_time,omitempty"`
	Attachments   []Attachment `gorm:"type:text;serializer:json" json:"attachments"`

	// Set at most once, never cleared.
	ProfessionalID         *string    `gorm:"type:varchar(64);index" json:"professional_id"`
	ProfessionalAssignedAt *time.Time `json:"professional_assigned_at"`

	CallRequested   bool    `gorm:"not null;default:false" json:"call_requested"`
	CallRequestedBy *Party  `gorm:"type:varchar(16)" json:"call_requested_by"`
	CallApproved    bool    `gorm:"not null;default:false" json:"call_approved"`
	CallReference   *string `gorm:"type:varchar(255)" json:"call_reference"`

	// Stars given by the requester once the request is completed.
	Rating *int `json:"rating,omitempty"`

	Version   int64     `gorm:"not null;default:1" json:"-"`
	CreatedAt time.Time `gorm:"autoCreateTime:false" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false" json:"updated_at"`
}

func (Request) TableName() string { return "repair_requests" }

// partyOf reports which side of the request a is on.
func (r *Request) partyOf(a Actor) (Party, bool) {
	switch a.Role {
	case PartyRequester:
		if a.ID != "" && a.ID == r.RequesterID {
			return PartyRequester, true
		}
	case PartyProfessional:
		if r.ProfessionalID != nil && a.ID != "" && *r.ProfessionalID == a.ID {
			return PartyProfessional, true
		}
	}
	return "", false
}

func (r *Request) Assigned() bool { return r.ProfessionalID != nil }

// IsParticipant reports whether a is the requester or the bound professional.
func (r *Request) IsParticipant(a Actor) bool {
	_, ok := r.partyOf(a)
	return ok
}

type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationApproved ApplicationStatus = "approved"
	ApplicationRejected ApplicationStatus = "rejected"
)

// Professional is both the onboarding application and, once approved, the
// public profile of a tradesperson.
type Professional struct {
	ID                string   `gorm:"primaryKey;type:varchar(64)" json:"id"`
	FullName          string   `gorm:"type:varchar(128);not null" json:"full_name"`
	Email             string   `gorm:"type:varchar(255)" json:"email"`
	PhoneNumber       string   `gorm:"type:varchar(32)" json:"phone_number"`
	TradeCategory     string   `gorm:"type:varchar(64);index" json:"trade_category"`
	YearsOfExperience int      `gorm:"not null;default:0" json:"years_of_experience"`
	HourlyRate        float64  `gorm:"not null;default:0" json:"hourly_rate"`
	ServiceArea       string   `gorm:"type:varchar(128)" json:"service_area"`
	Bio               string   `gorm:"type:text" json:"bio"`
	ProfilePhoto      string   `gorm:"type:varchar(255)" json:"profile_photo,omitempty"`
	IsAvailable       bool     `gorm:"not null;default:false" json:"is_available"`
	TotalJobs         int      `gorm:"not null;default:0" json:"total_jobs"`
	CompletedJobs     int      `gorm:"not null;default:0" json:"completed_jobs"`
	Earnings          float64  `gorm:"not null;default:0" json:"earnings"`
	Rating            *float64 `json:"rating"`
	RatingCount       int      `gorm:"not null;default:0" json:"rating_count"`

	ApplicationStatus ApplicationStatus `gorm:"type:varchar(16);index;not null;default:'pending'" json:"application_status"`
	AppliedAt         time.Time         `json:"applied_at"`
	ReviewNotes       *string           `gorm:"type:text" json:"review_notes,omitempty"`
	ReviewedBy        *string           `gorm:"type:varchar(64)" json:"reviewed_by,omitempty"`
	ReviewedAt        *time.Time        `json:"reviewed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Professional) Approved() bool { return p.ApplicationStatus == ApplicationApproved }

func (Professional) TableName() string { return "professionals" }

// Conversation is the 1:1 message log header of a request.
type Conversation struct {
	RequestID    string    `gorm:"primaryKey;size:26" json:"request_id"`
	MessageCount int       `gorm:"not null;default:0" json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime:false" json:"updated_at"`
}

func (Conversation) TableName() string { return "conversations" }

type Message struct {
	ID         string     `gorm:"primaryKey;size:26" json:"id"`
	RequestID  string     `gorm:"size:26;not null;index:uniq_conv_seq,unique,priority:1" json:"request_id"`
	Seq        int        `gorm:"not null;index:uniq_conv_seq,unique,priority:2" json:"seq"`
	SenderRole SenderRole `gorm:"type:varchar(16);not null" json:"sender_role"`
	SenderName string     `gorm:"type:varchar(128)" json:"sender_name"`
	Text       string     `gorm:"type:text;not null" json:"text"`
	CreatedAt  time.Time  `gorm:"autoCreateTime:false" json:"timestamp"`
}

func (Message) TableName() string { return "conversation_messages" }

// AutoMigrate creates or updates the lifecycle tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Request{}, &Professional{}, &Conversation{}, &Message{})
}
