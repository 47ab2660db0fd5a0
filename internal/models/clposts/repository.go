package clposts

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("article non trouvé")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ListPublished retourne les articles publiés, du plus récent au plus ancien
func (r *Repository) ListPublished(ctx context.Context, page, limit int, category string) ([]BlogPost, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 50 {
		limit = 10
	}

	query := r.db.WithContext(ctx).Model(&BlogPost{}).Where("published = ?", true)
	if category != "" {
		query = query.Where("category = ?", category)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("comptage articles: %w", err)
	}

	var posts []BlogPost
	err := query.
		Omit("content").
		Order("published_at DESC, id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, 0, fmt.Errorf("liste articles: %w", err)
	}

	return posts, total, nil
}

func (r *Repository) LatestPublished(ctx context.Context, n int) ([]BlogPost, error) {
	var posts []BlogPost
	err := r.db.WithContext(ctx).
		Where("published = ?", true).
		Order("published_at DESC, id DESC").
		Limit(n).
		Find(&posts).Error
	return posts, err
}

// ViewBySlug incrémente le compteur puis charge l'article, ErrNotFound si absent ou non publié
func (r *Repository) ViewBySlug(ctx context.Context, slug string) (*BlogPost, error) {
	var post BlogPost

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&BlogPost{}).
			Where("slug = ? AND published = ?", slug, true).
			UpdateColumn("views", gorm.Expr("views + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Where("slug = ?", slug).First(&post).Error
	})
	if err != nil {
		return nil, err
	}

	return &post, nil
}

func (r *Repository) List(ctx context.Context) ([]BlogPost, error) {
	var posts []BlogPost
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&posts).Error
	return posts, err
}

func (r *Repository) Get(ctx context.Context, id uint) (*BlogPost, error) {
	var post BlogPost
	err := r.db.WithContext(ctx).First(&post, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *Repository) Create(ctx context.Context, in PostInput) (*BlogPost, error) {
	post := &BlogPost{}
	in.apply(post, time.Now())

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		slug, err := uniqueSlug(tx, in.Slug, in.Title, 0)
		if err != nil {
			return err
		}
		post.Slug = slug
		return tx.Create(post).Error
	})
	if err != nil {
		return nil, fmt.Errorf("création article: %w", err)
	}
	return post, nil
}

func (r *Repository) Update(ctx context.Context, id uint, in PostInput) (*BlogPost, error) {
	var post BlogPost

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&post, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		// excerpt et image vides sont recalculés par BeforeSave
		in.apply(&post, time.Now())
		if in.Slug != "" && in.Slug != post.Slug {
			slug, err := uniqueSlug(tx, in.Slug, in.Title, post.ID)
			if err != nil {
				return err
			}
			post.Slug = slug
		}
		// views n'est jamais écrasé par l'admin
		return tx.Omit("views").Save(&post).Error
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *Repository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&BlogPost{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) Count(ctx context.Context) (total int64, published int64, err error) {
	db := r.db.WithContext(ctx).Model(&BlogPost{})
	if err = db.Count(&total).Error; err != nil {
		return
	}
	err = r.db.WithContext(ctx).Model(&BlogPost{}).Where("published = ?", true).Count(&published).Error
	return
}

// uniqueSlug ajoute -2, -3... tant que le slug est pris par un autre article
func uniqueSlug(tx *gorm.DB, wanted, title string, excludeID uint) (string, error) {
	base := Slugify(wanted)
	if base == "" {
		base = Slugify(title)
	}
	if base == "" {
		base = "article"
	}

	slug := base
	for i := 2; ; i++ {
		var count int64
		if err := tx.Model(&BlogPost{}).Where("slug = ? AND id <> ?", slug, excludeID).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return slug, nil
		}
		slug = base + "-" + strconv.Itoa(i)
	}
}
