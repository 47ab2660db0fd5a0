package clposts

import (
	"html/template"
	"littlefolio/internal/models/clmarkdown"
	"math"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ExcerptLength  = 300
	wordsPerMinute = 200
)

var (
	reImage      = regexp.MustCompile(`!\[[^\]]*\]\(([^)]+)\)`)
	reImageClean = regexp.MustCompile(`!\[.*?\]\(.*?\)`)
	reDashes     = regexp.MustCompile(`-{2,}`)
)

type BlogPost struct {
	ID          uint                        `json:"id" gorm:"primaryKey"`
	Title       string                      `json:"title" gorm:"not null"`
	Slug        string                      `json:"slug" gorm:"uniqueIndex;size:191;not null"`
	Excerpt     string                      `json:"excerpt" gorm:"type:text"`
	Content     string                      `json:"content" gorm:"type:text;not null"`
	ContentHTML template.HTML               `json:"contentHtml,omitempty" gorm:"-"`
	CoverImage  string                      `json:"coverImage"`
	Category    string                      `json:"category" gorm:"index"`
	Tags        datatypes.JSONSlice[string] `json:"tags"`
	Published   bool                        `json:"published" gorm:"index"`
	PublishedAt *time.Time                  `json:"publishedAt"`
	ReadTime    int                         `json:"readTime"`
	Views       int64                       `json:"views" gorm:"not null;default:0"`
	CreatedAt   time.Time                   `json:"createdAt" gorm:"autoCreateTime;index"`
	UpdatedAt   time.Time                   `json:"updatedAt" gorm:"autoUpdateTime"`
}

// PostInput est le corps accepté par l'admin
type PostInput struct {
	Title      string   `json:"title" binding:"required,max=200"`
	Slug       string   `json:"slug" binding:"omitempty,slug"`
	Excerpt    string   `json:"excerpt"`
	Content    string   `json:"content" binding:"required"`
	CoverImage string   `json:"coverImage" binding:"max=500"`
	Category   string   `json:"category" binding:"max=100"`
	Tags       []string `json:"tags" binding:"max=20,dive,max=50"`
	Published  bool     `json:"published"`
}

func (in PostInput) apply(p *BlogPost, now time.Time) {
	p.Title = strings.TrimSpace(in.Title)
	p.Excerpt = strings.TrimSpace(in.Excerpt)
	p.Content = in.Content
	p.CoverImage = in.CoverImage
	p.Category = strings.TrimSpace(in.Category)
	p.Tags = datatypes.NewJSONSlice(cleanTags(in.Tags))

	// la date de publication est fixée au premier passage en publié
	if in.Published && p.PublishedAt == nil {
		p.PublishedAt = &now
	}
	p.Published = in.Published
}

// cleanTags retire les espaces et les tags vides
func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

func (BlogPost) TableName() string {
	return "blog_posts"
}

// Hooks GORM
func (p *BlogPost) BeforeSave(tx *gorm.DB) error {
	if p.Tags == nil {
		p.Tags = datatypes.JSONSlice[string]{}
	}
	p.FillExcerpt()
	p.ReadTime = ReadTime(p.Content)
	return nil
}

// Render remplit ContentHTML
func (p *BlogPost) Render(r *clmarkdown.Renderer) {
	p.ContentHTML = r.ToHTML(p.Content)
}

// Remplir Excerpt et CoverImage à partir de Content
func (p *BlogPost) FillExcerpt() {
	if p.Content == "" {
		return
	}
	if p.Excerpt == "" {
		p.Excerpt = ExtractExcerpt(clmarkdown.ToText(CleanMarkdownForExcerpt(p.Content)), ExcerptLength)
	}
	if p.CoverImage == "" {
		if found, l := ExtractImages(p.Content, true); found {
			p.CoverImage = l[0]
		}
	}
}

// ReadTime en minutes, au moins 1
func ReadTime(content string) int {
	words := len(strings.Fields(clmarkdown.ToText(content)))
	minutes := int(math.Ceil(float64(words) / wordsPerMinute))
	if minutes < 1 {
		return 1
	}
	return minutes
}

func CleanMarkdownForExcerpt(content string) string {
	return reImageClean.ReplaceAllString(content, "")
}

// ExtractExcerpt coupe de préférence en fin de phrase, sinon sur un espace
func ExtractExcerpt(text string, maxLength int) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= maxLength {
		return text
	}

	rs := []rune(text)

	cutPoint := maxLength
	for i := maxLength - 1; i >= maxLength-100 && i >= 0; i-- {
		if rs[i] == '.' || rs[i] == '!' || rs[i] == '?' {
			cutPoint = i + 1
			break
		}
	}

	if cutPoint == maxLength {
		for i := maxLength - 1; i >= maxLength-50 && i >= 0; i-- {
			if rs[i] == ' ' {
				cutPoint = i
				break
			}
		}
	}

	result := strings.TrimSpace(string(rs[:cutPoint]))

	lastChar := rs[cutPoint-1]
	if lastChar != '.' && lastChar != '!' && lastChar != '?' {
		result += "..."
	}

	return result
}

// ExtractImages extrait l'URL des images du Markdown
// Exemple: ![capture.jpg](/files/uploads/8f14e45f.jpg)
func ExtractImages(markdown string, firstOnly bool) (bool, []string) {
	if markdown == "" {
		return false, nil
	}

	var l []string
	for _, match := range reImage.FindAllStringSubmatch(markdown, -1) {
		if len(match) < 2 {
			continue
		}
		l = append(l, strings.Trim(strings.TrimSpace(match[1]), `"' `))
		if firstOnly {
			break
		}
	}

	return len(l) > 0, l
}

// Slugify: minuscules, sans accents, mots séparés par des tirets
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if out, _, err := transform.String(t, s); err == nil {
		s = out
	}

	var result strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			result.WriteRune(r)
		case unicode.IsSpace(r) || r == '-' || r == '_' || unicode.IsPunct(r):
			result.WriteRune('-')
		}
	}

	return strings.Trim(reDashes.ReplaceAllString(result.String(), "-"), "-")
}
