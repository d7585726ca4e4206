package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// UnlimitedClasses marks a package (and the purchases minted from it) as never decrementing.
const UnlimitedClasses = 999

type Discipline struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"not null" json:"name"`
	Slug        string    `gorm:"uniqueIndex;not null" json:"slug"`
	Description string    `json:"description"`
	Benefits    string    `json:"benefits"`
	Order       int       `gorm:"column:display_order;not null" json:"order"`
	IsActive    bool      `gorm:"not null" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Instructor struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Name        string         `gorm:"not null" json:"name"`
	Bio         string         `json:"bio"`
	Disciplines pq.StringArray `gorm:"type:text[]" json:"disciplines"`
	IsActive    bool           `gorm:"not null" json:"is_active"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Class is never deleted once scheduled; IsCancelled is the soft-delete.
type Class struct {
	ID                        uint      `gorm:"primaryKey" json:"id"`
	DisciplineID              uint      `gorm:"not null;index" json:"discipline_id"`
	ComplementaryDisciplineID *uint     `gorm:"index" json:"complementary_discipline_id,omitempty"`
	InstructorID              uint      `gorm:"not null;index" json:"instructor_id"`
	DateTime                  time.Time `gorm:"not null;index" json:"date_time"`
	Duration                  int       `gorm:"not null" json:"duration"`
	MaxCapacity               int       `gorm:"not null" json:"max_capacity"`
	CurrentCount              int       `gorm:"not null;check:chk_classes_capacity,current_count >= 0 AND current_count <= max_capacity" json:"current_count"`
	ClassType                 string    `json:"class_type,omitempty"`
	IsCancelled               bool      `gorm:"not null" json:"is_cancelled"`
	IsRecurring               bool      `gorm:"not null" json:"is_recurring"`
	RecurrenceGroup           *string   `gorm:"type:varchar(36);index" json:"recurrence_group,omitempty"`
	CreatedAt                 time.Time `json:"created_at"`
	UpdatedAt                 time.Time `json:"updated_at"`

	Discipline              *Discipline `gorm:"foreignKey:DisciplineID" json:"discipline,omitempty"`
	ComplementaryDiscipline *Discipline `gorm:"foreignKey:ComplementaryDisciplineID" json:"complementary_discipline,omitempty"`
	Instructor              *Instructor `gorm:"foreignKey:InstructorID" json:"instructor,omitempty"`
}

func (c *Class) SpotsLeft() int {
	if left := c.MaxCapacity - c.CurrentCount; left > 0 {
		return left
	}
	return 0
}

func (c *Class) EndsAt() time.Time {
	return c.DateTime.Add(time.Duration(c.Duration) * time.Minute)
}

type Package struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	Slug         string          `gorm:"uniqueIndex;not null" json:"slug"`
	Name         string          `gorm:"not null" json:"name"`
	ClassCount   int             `gorm:"not null" json:"class_count"`
	Price        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	ValidityDays int             `gorm:"not null" json:"validity_days"`
	IsShareable  bool            `gorm:"not null" json:"is_shareable"`
	MaxShares    int             `gorm:"not null" json:"max_shares"`
	IsActive     bool            `gorm:"not null" json:"is_active"`
	IsFeatured   bool            `gorm:"not null" json:"is_featured"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (p *Package) IsUnlimited() bool {
	return p.ClassCount >= UnlimitedClasses
}
