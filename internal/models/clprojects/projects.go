package clprojects

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("projet non trouvé")

type Project struct {
	ID           uint                        `json:"id" gorm:"primaryKey"`
	Title        string                      `json:"title" gorm:"not null"`
	Description  string                      `json:"description" gorm:"type:text"`
	Image        string                      `json:"image"`
	Technologies datatypes.JSONSlice[string] `json:"technologies"`
	GithubURL    string                      `json:"githubUrl"`
	LiveURL      string                      `json:"liveUrl"`
	Featured     bool                        `json:"featured" gorm:"index"`
	SortOrder    int                         `json:"sortOrder" gorm:"index"`
	Views        int64                       `json:"views" gorm:"not null;default:0"`
	CreatedAt    time.Time                   `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt    time.Time                   `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (Project) TableName() string {
	return "projects"
}

// BeforeSave: jamais de null en base ni en JSON
func (p *Project) BeforeSave(tx *gorm.DB) error {
	if p.Technologies == nil {
		p.Technologies = datatypes.JSONSlice[string]{}
	}
	return nil
}

// ProjectInput est le corps accepté par l'admin
type ProjectInput struct {
	Title        string   `json:"title" binding:"required,max=200"`
	Description  string   `json:"description" binding:"max=5000"`
	Image        string   `json:"image" binding:"omitempty,max=500"`
	Technologies []string `json:"technologies" binding:"max=30,dive,max=50"`
	GithubURL    string   `json:"githubUrl" binding:"omitempty,url,max=500"`
	LiveURL      string   `json:"liveUrl" binding:"omitempty,url,max=500"`
	Featured     bool     `json:"featured"`
	SortOrder    int      `json:"sortOrder"`
}

func (in ProjectInput) apply(p *Project) {
	p.Title = strings.TrimSpace(in.Title)
	p.Description = in.Description
	p.Image = in.Image
	p.Technologies = datatypes.NewJSONSlice(trimAll(in.Technologies))
	p.GithubURL = in.GithubURL
	p.LiveURL = in.LiveURL
	p.Featured = in.Featured
	p.SortOrder = in.SortOrder
}

// trimAll retire les espaces et les entrées vides
func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// List: projets mis en avant d'abord, puis sort_order
func (r *Repository) List(ctx context.Context) ([]Project, error) {
	var projects []Project
	err := r.db.WithContext(ctx).
		Order("featured DESC, sort_order ASC, id ASC").
		Find(&projects).Error
	if err != nil {
		return nil, fmt.Errorf("liste projets: %w", err)
	}
	return projects, nil
}

func (r *Repository) Get(ctx context.Context, id uint) (*Project, error) {
	var project Project
	err := r.db.WithContext(ctx).First(&project, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *Repository) Create(ctx context.Context, in ProjectInput) (*Project, error) {
	project := &Project{}
	in.apply(project)
	if err := r.db.WithContext(ctx).Create(project).Error; err != nil {
		return nil, fmt.Errorf("création projet: %w", err)
	}
	return project, nil
}

func (r *Repository) Update(ctx context.Context, id uint, in ProjectInput) (*Project, error) {
	var project Project
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&project, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		in.apply(&project)
		return tx.Omit("views").Save(&project).Error
	})
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *Repository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&Project{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&Project{}).Count(&n).Error
	return n, err
}
