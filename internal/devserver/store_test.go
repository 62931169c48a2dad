package devserver

import (
	"context"
	"errors"
	"os"
	"testing"
)

func exerciseStore(t *testing.T, store Store) {
	ctx := context.Background()

	a := &Article{Title: "Mushishi", Content: "Ginko wanders."}
	if err := store.CreateArticle(ctx, a); err != nil {
		t.Fatalf("CreateArticle() error = %v", err)
	}
	g1 := &Genre{Name: "Iyashikei"}
	g2 := &Genre{Name: "Supernatural"}
	for _, g := range []*Genre{g1, g2} {
		if err := store.CreateGenre(ctx, g); err != nil {
			t.Fatalf("CreateGenre() error = %v", err)
		}
	}
	if err := store.CreateGenre(ctx, &Genre{Name: "iyashikei"}); !errors.Is(err, ErrConflict) {
		t.Errorf("duplicate CreateGenre() error = %v, want ErrConflict", err)
	}

	link := &ArticleGenre{ArticleID: a.ID, GenreID: g1.ID}
	if err := store.CreateLink(ctx, link); err != nil {
		t.Fatalf("CreateLink() error = %v", err)
	}
	if link.ID == 0 {
		t.Error("CreateLink() did not assign an id")
	}
	if err := store.CreateLink(ctx, &ArticleGenre{ArticleID: a.ID, GenreID: g1.ID}); !errors.Is(err, ErrConflict) {
		t.Errorf("duplicate CreateLink() error = %v, want ErrConflict", err)
	}
	if err := store.CreateLink(ctx, &ArticleGenre{ArticleID: a.ID, GenreID: 424242}); !errors.Is(err, ErrNotFound) {
		t.Errorf("CreateLink() with unknown genre error = %v, want ErrNotFound", err)
	}

	if err := store.SetArticleGenres(ctx, a.ID, []int64{g2.ID, g2.ID}); err != nil {
		t.Fatalf("SetArticleGenres() error = %v", err)
	}
	links, err := store.ListLinks(ctx, a.ID, 0)
	if err != nil {
		t.Fatalf("ListLinks() error = %v", err)
	}
	if len(links) != 1 || links[0].GenreID != g2.ID {
		t.Errorf("links after SetArticleGenres = %+v", links)
	}
	if err := store.SetArticleGenres(ctx, a.ID, []int64{424242}); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetArticleGenres() with unknown genre error = %v, want ErrNotFound", err)
	}

	if err := store.DeleteGenre(ctx, g2.ID); err != nil {
		t.Fatalf("DeleteGenre() error = %v", err)
	}
	if links, _ := store.ListLinks(ctx, 0, g2.ID); len(links) != 0 {
		t.Errorf("links of deleted genre = %+v", links)
	}

	a.Title = "Mushi-shi"
	if err := store.UpdateArticle(ctx, a); err != nil {
		t.Fatalf("UpdateArticle() error = %v", err)
	}
	got, err := store.GetArticle(ctx, a.ID)
	if err != nil || got.Title != "Mushi-shi" {
		t.Errorf("GetArticle() = %+v, %v", got, err)
	}
	if found, _ := store.ListArticles(ctx, "GINKO"); len(found) != 1 {
		t.Errorf("ListArticles(search) = %+v", found)
	}

	if err := store.DeleteArticle(ctx, a.ID); err != nil {
		t.Fatalf("DeleteArticle() error = %v", err)
	}
	if _, err := store.GetArticle(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetArticle() after delete error = %v, want ErrNotFound", err)
	}
	if err := store.DeleteLink(ctx, link.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteLink() of cascaded link error = %v, want ErrNotFound", err)
	}

	u := &User{Username: "mod", PasswordHash: "x", Roles: "editor, admin"}
	if err := store.SaveUser(ctx, u); err != nil {
		t.Fatalf("SaveUser() error = %v", err)
	}
	u2 := &User{Username: "mod", PasswordHash: "y"}
	if err := store.SaveUser(ctx, u2); err != nil {
		t.Fatalf("SaveUser() update error = %v", err)
	}
	if u2.ID != u.ID {
		t.Errorf("SaveUser() created a second user: %d != %d", u2.ID, u.ID)
	}
	byID, err := store.GetUserByID(ctx, u.ID)
	if err != nil || byID.PasswordHash != "y" {
		t.Errorf("GetUserByID() = %+v, %v", byID, err)
	}
	if _, err := store.GetUser(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUser() error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestGormStore(t *testing.T) {
	dsn := os.Getenv("WEEB_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("WEEB_TEST_DATABASE_URL not set")
	}
	store, err := OpenPostgres(dsn, false)
	if err != nil {
		t.Fatalf("OpenPostgres() error = %v", err)
	}
	t.Cleanup(func() {
		store.DB.Exec("DROP TABLE IF EXISTS article_genres, articles, genres, users")
		store.Close()
	})
	exerciseStore(t, store)
}

func TestUserRoleList(t *testing.T) {
	u := User{Roles: " editor, ,admin "}
	got := u.RoleList()
	if len(got) != 2 || got[0] != "editor" || got[1] != "admin" {
		t.Errorf("RoleList() = %v", got)
	}
}
