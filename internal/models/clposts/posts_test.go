package clposts

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&BlogPost{}))
	return db
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"":                          "",
		"Hello World":               "hello-world",
		"Été à Paris !":             "ete-a-paris",
		"  Go, gin & gorm  ":        "go-gin-gorm",
		"abcd01234--":               "abcd01234",
		"%#abc d01234--":            "abc-d01234",
		"déjà_vu":                   "deja-vu",
		"Les 10 commandes à savoir": "les-10-commandes-a-savoir",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slugify(in), in)
	}
}

func TestExtractExcerpt(t *testing.T) {
	assert.Equal(t, "court", ExtractExcerpt("court", 10))

	long := strings.Repeat("mot ", 100)
	out := ExtractExcerpt(long, 50)
	assert.True(t, strings.HasSuffix(out, "..."))
	assert.LessOrEqual(t, len([]rune(out)), 53)

	sentence := "Première phrase. " + strings.Repeat("a", 60)
	assert.Equal(t, "Première phrase.", ExtractExcerpt(sentence, 40))
}

func TestExtractImages(t *testing.T) {
	found, l := ExtractImages("texte ![a](/files/a.jpg) et ![b]( /files/b.png )", false)
	assert.True(t, found)
	assert.Equal(t, []string{"/files/a.jpg", "/files/b.png"}, l)

	found, l = ExtractImages("![a](/files/a.jpg) ![b](/files/b.png)", true)
	assert.True(t, found)
	assert.Len(t, l, 1)

	found, _ = ExtractImages("pas d'image", false)
	assert.False(t, found)
}

func TestReadTime(t *testing.T) {
	assert.Equal(t, 1, ReadTime(""))
	assert.Equal(t, 1, ReadTime("quelques mots"))
	assert.Equal(t, 3, ReadTime(strings.Repeat("mot ", 450)))
}

func TestCreateGeneratesUniqueSlug(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()

	first, err := repo.Create(ctx, PostInput{Title: "Mon Article", Content: "contenu ![img](/files/x.jpg)", Tags: []string{"go", "web"}})
	require.NoError(t, err)
	assert.Equal(t, "mon-article", first.Slug)
	assert.Equal(t, "/files/x.jpg", first.CoverImage)
	assert.NotEmpty(t, first.Excerpt)
	assert.Nil(t, first.PublishedAt)

	second, err := repo.Create(ctx, PostInput{Title: "Mon article", Content: "autre", Published: true})
	require.NoError(t, err)
	assert.Equal(t, "mon-article-2", second.Slug)
	assert.NotNil(t, second.PublishedAt)

	got, err := repo.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "web"}, []string(got.Tags))
}

func TestTagsRoundTrip(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()

	post, err := repo.Create(ctx, PostInput{Title: "Sans tags", Content: "texte"})
	require.NoError(t, err)
	require.NotNil(t, post.Tags)
	body, err := json.Marshal(post)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"tags":[]`)

	updated, err := repo.Update(ctx, post.ID, PostInput{
		Title:   "Avec tags",
		Content: "texte",
		Tags:    []string{"Go, Gin", " web ", ""},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Go, Gin", "web"}, []string(updated.Tags))

	got, err := repo.Get(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Go, Gin", "web"}, []string(got.Tags))
}

func TestViewBySlug(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	post, err := repo.Create(ctx, PostInput{Title: "Publié", Content: "texte", Published: true})
	require.NoError(t, err)
	draft, err := repo.Create(ctx, PostInput{Title: "Brouillon", Content: "texte"})
	require.NoError(t, err)

	got, err := repo.ViewBySlug(ctx, post.Slug)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Views)

	got, err = repo.ViewBySlug(ctx, post.Slug)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Views)

	_, err = repo.ViewBySlug(ctx, "inexistant")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.ViewBySlug(ctx, draft.Slug)
	assert.ErrorIs(t, err, ErrNotFound)

	var reloaded BlogPost
	require.NoError(t, db.First(&reloaded, draft.ID).Error)
	assert.Zero(t, reloaded.Views)
}

func TestUpdateKeepsViews(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	post, err := repo.Create(ctx, PostInput{Title: "Titre", Content: "texte", Published: true})
	require.NoError(t, err)
	_, err = repo.ViewBySlug(ctx, post.Slug)
	require.NoError(t, err)

	updated, err := repo.Update(ctx, post.ID, PostInput{Title: "Nouveau", Slug: "nouveau-slug", Content: "nouveau", Published: true})
	require.NoError(t, err)
	assert.Equal(t, "nouveau-slug", updated.Slug)
	assert.Equal(t, post.PublishedAt.Unix(), updated.PublishedAt.Unix())

	var reloaded BlogPost
	require.NoError(t, db.First(&reloaded, post.ID).Error)
	assert.Equal(t, int64(1), reloaded.Views)
	assert.Equal(t, "Nouveau", reloaded.Title)

	_, err = repo.Update(ctx, 999, PostInput{Title: "x", Content: "y"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListPublishedAndDelete(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()

	for i, cat := range []string{"go", "go", "devops"} {
		_, err := repo.Create(ctx, PostInput{Title: "Article " + string(rune('A'+i)), Content: "texte", Category: cat, Published: true})
		require.NoError(t, err)
	}
	draft, err := repo.Create(ctx, PostInput{Title: "Brouillon", Content: "texte"})
	require.NoError(t, err)

	posts, total, err := repo.ListPublished(ctx, 1, 10, "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, posts, 3)

	posts, total, err = repo.ListPublished(ctx, 1, 10, "go")
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, posts, 2)

	posts, _, err = repo.ListPublished(ctx, 2, 2, "")
	require.NoError(t, err)
	assert.Len(t, posts, 1)

	all, published, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), all)
	assert.Equal(t, int64(3), published)

	require.NoError(t, repo.Delete(ctx, draft.ID))
	assert.ErrorIs(t, repo.Delete(ctx, draft.ID), ErrNotFound)
}
