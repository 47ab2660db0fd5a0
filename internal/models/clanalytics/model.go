package clanalytics

import (
	"time"

	"gorm.io/datatypes"
)

// Visitor: une ligne par adresse IP, jamais supprimée par la purge
type Visitor struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	IPAddress  string    `gorm:"uniqueIndex;size:64;not null" json:"ipAddress"`
	VisitCount int64     `gorm:"not null;default:1" json:"visitCount"`
	LastVisit  time.Time `gorm:"index" json:"lastVisit"`
	UserAgent  string    `gorm:"size:500" json:"userAgent"`
	Country    string    `gorm:"size:100;index" json:"country"`
	Region     string    `gorm:"size:100" json:"region"`
	City       string    `gorm:"size:100" json:"city"`
	CreatedAt  time.Time `json:"createdAt"`
}

type PageView struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	VisitorID *uint     `gorm:"index" json:"visitorId"`
	Page      string    `gorm:"size:500;index;not null" json:"page"`
	Title     string    `gorm:"size:200" json:"title"`
	Referrer  *string   `gorm:"size:500" json:"referrer"`
	Device    string    `gorm:"size:20;index" json:"device"`
	Browser   string    `gorm:"size:50" json:"browser"`
	OS        string    `gorm:"size:50" json:"os"`
	Country   string    `gorm:"size:100" json:"country"`
	Region    string    `gorm:"size:100" json:"region"`
	City      string    `gorm:"size:100" json:"city"`
	TimeSpent *int      `json:"timeSpent"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

type BlogView struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"index;not null" json:"postId"`
	VisitorID *uint     `gorm:"index" json:"visitorId"`
	ReadTime  *int      `json:"readTime"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

type ProjectView struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	ProjectID uint      `gorm:"index;not null" json:"projectId"`
	VisitorID *uint     `gorm:"index" json:"visitorId"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

type CustomEvent struct {
	ID        uint64            `gorm:"primaryKey" json:"id"`
	Kind      string            `gorm:"size:20;index;not null" json:"kind"`
	Name      string            `gorm:"size:64;not null" json:"name"`
	Page      string            `gorm:"size:500" json:"page"`
	VisitorID *uint             `gorm:"index" json:"visitorId"`
	Payload   datatypes.JSONMap `json:"payload"`
	CreatedAt time.Time         `gorm:"index" json:"createdAt"`
}

func (Visitor) TableName() string     { return "visitors" }
func (PageView) TableName() string    { return "page_views" }
func (BlogView) TableName() string    { return "blog_views" }
func (ProjectView) TableName() string { return "project_views" }
func (CustomEvent) TableName() string { return "custom_events" }

// Models liste les tables de la base analytics
func Models() []any {
	return []any{&Visitor{}, &PageView{}, &BlogView{}, &ProjectView{}, &CustomEvent{}}
}
