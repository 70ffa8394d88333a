package models

import (
	"strconv"
	"time"

	"gorm.io/datatypes"
)

type User struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"not null" json:"name"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Role         Role      `gorm:"type:varchar(16);not null;default:USER" json:"role"`
	Department   string    `gorm:"size:100" json:"department,omitempty"`
	Designation  string    `gorm:"size:100" json:"designation,omitempty"`
	Phone        string    `gorm:"size:20" json:"phone,omitempty"`
	Location     string    `gorm:"size:100" json:"location,omitempty"`
	AvatarPath   *string   `json:"avatarPath,omitempty"`
	IsActive     bool      `gorm:"not null;default:true" json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Ticket is a unit of work. A nil AssigneeID means the ticket sits in the
// pool; pool tickets are always OPEN.
type Ticket struct {
	ID           int64        `gorm:"primaryKey" json:"id"`
	Title        string       `gorm:"not null" json:"title"`
	Description  string       `json:"description"`
	Month        string       `gorm:"size:16;not null" json:"month"`
	Year         int          `gorm:"not null" json:"year"`
	AssigneeID   *int64       `gorm:"index" json:"assignee"`
	Status       TicketStatus `gorm:"type:varchar(16);not null;default:OPEN;index" json:"status"`
	CreatedBy    int64        `gorm:"not null" json:"createdBy"`
	Version      int64        `gorm:"not null;default:1" json:"version"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
	AssigneeName string       `gorm:"->;-:migration" json:"assigneeName,omitempty"`
}

func (t Ticket) Period() string { return t.Month + " " + strconv.Itoa(t.Year) }

func (t Ticket) AssignedTo(userID int64) bool {
	return t.AssigneeID != nil && *t.AssigneeID == userID
}

type TicketUpdate struct {
	ID             int64     `gorm:"primaryKey" json:"id"`
	TicketID       int64     `gorm:"index;not null" json:"ticketId"`
	AuthorID       int64     `gorm:"not null" json:"authorId"`
	UpdateText     string    `gorm:"not null" json:"updateText"`
	ScreenshotPath *string   `json:"screenshotPath,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	AuthorName     string    `gorm:"->;-:migration" json:"userName,omitempty"`
}

// Session is the server-side record behind every access token (the "sid"
// claim). Refresh tokens live in Redis and point at a session ID.
type Session struct {
	ID        string     `gorm:"primaryKey;size:64" json:"id"`
	UserID    int64      `gorm:"index;not null" json:"userId"`
	ExpiresAt time.Time  `gorm:"not null;index" json:"expiresAt"`
	RevokedAt *time.Time `json:"revokedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

func (s Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

type AuditLog struct {
	ID        int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    *int64         `gorm:"index" json:"userId,omitempty"`
	Action    string         `gorm:"not null" json:"action"`
	Metadata  datatypes.JSON `gorm:"type:jsonb" json:"metadata"`
	CreatedAt time.Time      `json:"createdAt"`
}

type Attendance struct {
	ID               int64      `gorm:"primaryKey" json:"id"`
	UserID           int64      `gorm:"not null;uniqueIndex:idx_attendance_user_date" json:"userId"`
	Date             string     `gorm:"size:10;not null;uniqueIndex:idx_attendance_user_date" json:"date"`
	CheckInAt        *time.Time `json:"checkInTime,omitempty"`
	CheckOutAt       *time.Time `json:"checkOutTime,omitempty"`
	Status           string     `gorm:"size:20;not null;default:Absent" json:"status"`
	LocationVerified bool       `gorm:"not null;default:false" json:"locationVerified"`
	CreatedAt        time.Time  `json:"createdAt"`
}

func (Attendance) TableName() string { return "attendance_records" }

type Document struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	UserID       int64     `gorm:"index;not null" json:"userId"`
	DocumentType string    `gorm:"size:50;not null" json:"documentType"`
	FilePath     string    `gorm:"not null" json:"file"`
	UploadedAt   time.Time `gorm:"autoCreateTime" json:"uploadedAt"`
}

type WorkUpdate struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	UserID      int64     `gorm:"index;not null" json:"userId"`
	Date        string    `gorm:"size:10;not null" json:"date"`
	ProjectName string    `gorm:"size:200;not null" json:"projectName"`
	Description string    `gorm:"not null" json:"description"`
	Status      string    `gorm:"size:50;not null;default:'In Progress'" json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}
