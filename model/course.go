package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Course access types
const (
	AccessTypeLifetime     = "lifetime"
	AccessTypeSubscription = "subscription"
	AccessTypeTrial        = "trial"
)

// Course represents a sellable face-yoga program
type Course struct {
	ID           string         `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	Title        string         `gorm:"not null" json:"title"`
	Description  string         `gorm:"type:text" json:"description"`
	ImageURL     string         `json:"image_url,omitempty"`
	WelcomeVideo string         `json:"welcome_video,omitempty"`
	Difficulty   string         `gorm:"type:varchar(20)" json:"difficulty"`
	Duration     string         `gorm:"type:varchar(50)" json:"duration"`
	Price        float64        `gorm:"default:0" json:"price"`
	Currency     string         `gorm:"type:varchar(10);default:'usd'" json:"currency"`
	IsPublished  bool           `gorm:"default:false;index" json:"is_published"`

	// Access configuration: lifetime, subscription, trial
	AccessType                 string `gorm:"type:varchar(20);default:'lifetime'" json:"access_type"`
	TrialDurationDays          int    `gorm:"default:0" json:"trial_duration_days"`
	SubscriptionDurationMonths int    `gorm:"default:0" json:"subscription_duration_months"`

	Rating float64 `gorm:"default:0" json:"rating"`

	// Relationships
	Sections  []CourseSection  `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"sections,omitempty"`
	Purchases []CoursePurchase `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"-"`
	Access    []CourseAccess   `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for Course
func (Course) TableName() string {
	return "courses"
}

// BeforeCreate assigns a UUID primary key
func (c *Course) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

// IsFree reports whether the course can be viewed without a purchase
func (c *Course) IsFree() bool {
	return c.Price <= 0
}

// CourseSection groups lessons and exercises inside a course.
// OrderIndex defines display and traversal order within the course.
type CourseSection struct {
	ID          string         `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	CourseID    string         `gorm:"type:uuid;not null;index" json:"course_id"`
	Title       string         `gorm:"not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	OrderIndex  int            `gorm:"not null;default:0" json:"order_index"`

	// Relationships
	Course    *Course           `gorm:"foreignKey:CourseID" json:"-"`
	Lessons   []SectionLesson   `gorm:"foreignKey:SectionID;constraint:OnDelete:CASCADE" json:"lessons,omitempty"`
	Exercises []SectionExercise `gorm:"foreignKey:SectionID;constraint:OnDelete:CASCADE" json:"exercises,omitempty"`
}

// TableName specifies the table name for CourseSection
func (CourseSection) TableName() string {
	return "course_sections"
}

// BeforeCreate assigns a UUID primary key
func (s *CourseSection) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

// Lesson represents a single face-yoga lesson video
type Lesson struct {
	ID           string         `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	Title        string         `gorm:"not null" json:"title"`
	Description  string         `gorm:"type:text" json:"description"`
	Duration     int            `gorm:"default:0" json:"duration"` // minutes
	Difficulty   string         `gorm:"type:varchar(20)" json:"difficulty"`
	ImageURL     string         `json:"image_url,omitempty"`
	VideoURL     string         `json:"video_url,omitempty"`
	Instructions datatypes.JSON `gorm:"type:jsonb" json:"instructions,omitempty"` // ordered step strings
	Benefits     datatypes.JSON `gorm:"type:jsonb" json:"benefits,omitempty"`
	Category     string         `gorm:"type:varchar(50);index" json:"category"`
	TargetArea   string         `gorm:"type:varchar(50)" json:"target_area"`
}

// TableName specifies the table name for Lesson
func (Lesson) TableName() string {
	return "lessons"
}

// BeforeCreate assigns a UUID primary key
func (l *Lesson) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	return nil
}

// Exercise represents a standalone face-yoga exercise
type Exercise struct {
	ID           string         `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	Title        string         `gorm:"not null" json:"title"`
	Description  string         `gorm:"type:text" json:"description"`
	Duration     int            `gorm:"default:0" json:"duration"` // minutes
	Difficulty   string         `gorm:"type:varchar(20)" json:"difficulty"`
	ImageURL     string         `json:"image_url,omitempty"`
	VideoURL     string         `json:"video_url,omitempty"`
	Instructions datatypes.JSON `gorm:"type:jsonb" json:"instructions,omitempty"`
	Benefits     datatypes.JSON `gorm:"type:jsonb" json:"benefits,omitempty"`
	TargetArea   string         `gorm:"type:varchar(50)" json:"target_area"`
}

// TableName specifies the table name for Exercise
func (Exercise) TableName() string {
	return "exercises"
}

// BeforeCreate assigns a UUID primary key
func (e *Exercise) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return nil
}

// SectionLesson links a lesson into a section. A lesson may appear in any
// number of sections; OrderID controls ordering inside one section.
type SectionLesson struct {
	ID        string         `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	SectionID string         `gorm:"type:uuid;not null;index" json:"section_id"`
	LessonID  string         `gorm:"type:uuid;not null;index" json:"lesson_id"`
	OrderID   int            `gorm:"not null;default:0" json:"order_id"`

	// Relationships
	Section *CourseSection `gorm:"foreignKey:SectionID" json:"-"`
	Lesson  *Lesson        `gorm:"foreignKey:LessonID" json:"lesson,omitempty"`
}

// TableName specifies the table name for SectionLesson
func (SectionLesson) TableName() string {
	return "section_lessons"
}

// BeforeCreate assigns a UUID primary key
func (sl *SectionLesson) BeforeCreate(tx *gorm.DB) error {
	if sl.ID == "" {
		sl.ID = uuid.New().String()
	}
	return nil
}

// SectionExercise links an exercise into a section
type SectionExercise struct {
	ID         string         `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
	SectionID  string         `gorm:"type:uuid;not null;index" json:"section_id"`
	ExerciseID string         `gorm:"type:uuid;not null;index" json:"exercise_id"`
	OrderIndex int            `gorm:"not null;default:0" json:"order_index"`

	// Relationships
	Section  *CourseSection `gorm:"foreignKey:SectionID" json:"-"`
	Exercise *Exercise      `gorm:"foreignKey:ExerciseID" json:"exercise,omitempty"`
}

// TableName specifies the table name for SectionExercise
func (SectionExercise) TableName() string {
	return "section_exercises"
}

// BeforeCreate assigns a UUID primary key
func (se *SectionExercise) BeforeCreate(tx *gorm.DB) error {
	if se.ID == "" {
		se.ID = uuid.New().String()
	}
	return nil
}
