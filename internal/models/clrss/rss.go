package clrss

import (
	"encoding/xml"
	"fmt"
	"littlefolio/internal/models/clmarkdown"
	"littlefolio/internal/models/clposts"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RSS représente le flux RSS complet
type RSS struct {
	XMLName xml.Name `xml:"rss"`
	Version string   `xml:"version,attr"`
	Channel Channel  `xml:"channel"`
}

type Channel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	Language      string    `xml:"language"`
	Copyright     string    `xml:"copyright,omitempty"`
	Generator     string    `xml:"generator"`
	LastBuildDate string    `xml:"lastBuildDate"`
	Items         []RSSItem `xml:"item"`
}

type RSSItem struct {
	Title       string        `xml:"title"`
	Link        string        `xml:"link"`
	Description string        `xml:"description"`
	Category    string        `xml:"category,omitempty"`
	GUID        string        `xml:"guid"`
	PubDate     string        `xml:"pubDate"`
	Enclosure   *RSSEnclosure `xml:"enclosure"`
}

type RSSEnclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
	Type   string `xml:"type,attr"`
}

// Feed regroupe ce qui décrit le canal
type Feed struct {
	BaseURL     string
	SiteName    string
	Description string
	Version     string
	StaticPath  string
}

func imageInfo(imagePath string) (int64, string, error) {
	fileInfo, err := os.Stat(imagePath)
	if err != nil {
		return 0, "", err
	}

	mimeType := mime.TypeByExtension(filepath.Ext(imagePath))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return fileInfo.Size(), mimeType, nil
}

// Build construit le flux, les liens pointent vers /blog/<slug>
func Build(f Feed, posts []clposts.BlogPost, now time.Time) RSS {
	rss := RSS{
		Version: "2.0",
		Channel: Channel{
			Title:         f.SiteName,
			Link:          f.BaseURL,
			Description:   clmarkdown.ToText(f.Description),
			Language:      "fr-FR",
			Copyright:     fmt.Sprintf("© %d %s", now.Year(), f.SiteName),
			Generator:     fmt.Sprintf("Littlefolio v%s", f.Version),
			LastBuildDate: now.Format(time.RFC1123Z),
			Items:         make([]RSSItem, 0, len(posts)),
		},
	}

	for _, post := range posts {
		// RSS 2.0 ne supporte qu'une catégorie par item
		category := post.Category
		if category == "" && len(post.Tags) > 0 {
			category = post.Tags[0]
		}

		pub := post.CreatedAt
		if post.PublishedAt != nil {
			pub = *post.PublishedAt
		}

		link := fmt.Sprintf("%s/blog/%s", f.BaseURL, post.Slug)
		item := RSSItem{
			Title:       post.Title,
			Link:        link,
			Description: clmarkdown.ToText(post.Excerpt),
			Category:    category,
			GUID:        link,
			PubDate:     pub.Format(time.RFC1123Z),
		}

		if strings.HasPrefix(post.CoverImage, "/static/") && f.StaticPath != "" {
			realpath := filepath.Join(f.StaticPath, strings.TrimPrefix(post.CoverImage, "/static/"))
			if size, mimeType, err := imageInfo(realpath); err == nil {
				item.Enclosure = &RSSEnclosure{
					URL:    f.BaseURL + post.CoverImage,
					Length: size,
					Type:   mimeType,
				}
			}
		}

		rss.Channel.Items = append(rss.Channel.Items, item)
	}

	return rss
}

// Marshal ajoute l'en-tête XML
func (r RSS) Marshal() ([]byte, error) {
	output, err := xml.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), output...), nil
}
