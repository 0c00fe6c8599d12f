package models

import "time"

// Profile is the canonical, currently visible state of a user account.
type Profile struct {
	ID           string
	Email        string
	PasswordHash string
	Role         string

	FirstName  string
	LastName   string
	MiddleName string
	Birthday   *time.Time
	Location   string
	Experience string
	Bio        string
	PlaceWork  string
	Avatar     string

	Contacts        []Contact
	Education       []Education
	Specializations []Specialization

	IsEmailVerified bool
	IsBanned        bool
	BanReason       string
	BannedAt        *time.Time
	BannedBy        string

	Warnings []Warning

	PendingChanges *PendingChanges

	// Version is bumped on every write and used for optimistic locking.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Specialization as stored in a profile. Name caches the catalog label
// of SpecializationID.
type Specialization struct {
	SpecializationID      string `json:"specializationId"`
	Name                  string `json:"name,omitempty"`
	Method                string `json:"method"`
	QualificationCategory string `json:"qualificationCategory,omitempty"`
	IsPrimary             bool   `json:"isPrimary"`
}

type Education struct {
	Institution    string `json:"institution"`
	Degree         string `json:"degree,omitempty"`
	Specialty      string `json:"specialty,omitempty"`
	GraduationYear *int   `json:"graduationYear,omitempty"`
	IsCurrently    bool   `json:"isCurrently"`
}

// Warning is a moderator notice attached to a profile.
type Warning struct {
	Message  string    `json:"message"`
	IssuedBy string    `json:"issuedBy"`
	IssuedAt time.Time `json:"issuedAt"`
	Reason   string    `json:"reason,omitempty"`
}

type Contact struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	IsPublic bool   `json:"isPublic"`
}

// Specialization methods and qualification categories, in the labels the
// product shows to users.
const (
	MethodResidency  = "Ординатура"
	MethodRetraining = "Профессиональная переподготовка"

	CategorySecond  = "Вторая категория"
	CategoryFirst   = "Первая категория"
	CategoryHighest = "Высшая категория"
)

// CatalogSpecialization is an entry of the specialization catalog.
type CatalogSpecialization struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Value   string `json:"value"`
	Profile string `json:"profile"`
}
