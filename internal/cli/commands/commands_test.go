package commands

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"
	"github.com/zalando/go-keyring"

	"github.com/melissa98m/weeb-website-sub000/internal/api"
	"github.com/melissa98m/weeb-website-sub000/internal/config"
	"github.com/melissa98m/weeb-website-sub000/internal/devserver"
	"github.com/melissa98m/weeb-website-sub000/internal/reconcile"
)

func TestPageCount(t *testing.T) {
	tests := []struct {
		total, size, want int
	}{
		{0, 10, 1},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{25, 10, 3},
		{5, 0, 1},
	}
	for _, tt := range tests {
		if got := pageCount(tt.total, tt.size); got != tt.want {
			t.Errorf("pageCount(%d, %d) = %d, want %d", tt.total, tt.size, got, tt.want)
		}
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "7", want: 7},
		{in: "", wantErr: true},
		{in: "0", wantErr: true},
		{in: "-3", wantErr: true},
		{in: "abc", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseID(tt.in, "article")
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseID(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseID(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestTruncateString(t *testing.T) {
	if got := truncateString("Frieren", 20); got != "Frieren" {
		t.Errorf("short string changed: %q", got)
	}
	if got := truncateString("Sousou no Frieren", 10); got != "Sousou ..." {
		t.Errorf("truncateString() = %q", got)
	}
	if got := truncateString("進撃の巨人ファイナル", 6); got != "進撃の..." {
		t.Errorf("truncateString() multibyte = %q", got)
	}
}

func TestContrastColor(t *testing.T) {
	tests := map[string]string{
		"#ffffff": "#000000",
		"#FFF":    "#000000",
		"#000000": "#ffffff",
		"#1e2a3d": "#ffffff",
		"#8BC34A": "#000000",
	}
	for in, want := range tests {
		if got := contrastColor(in); got != want {
			t.Errorf("contrastColor(%s) = %s, want %s", in, got, want)
		}
	}
	if got := genreBadge("Mecha", "blue"); got != "Mecha" {
		t.Errorf("genreBadge() with invalid color = %q, want plain name", got)
	}
}

func TestPrintPlanWithForeignRows(t *testing.T) {
	report := &reconcile.Report{
		ArticleID:    55,
		Endpoint:     "articles-genres/",
		Desired:      []int64{3},
		Unattributed: 4,
		Plan:         reconcile.Plan{ToAdd: []int64{3}, DeletionsSuppressed: true},
	}
	var buf bytes.Buffer
	printPlan(&buf, report)
	out := buf.String()

	if !strings.Contains(out, "4 returned rows did not belong to this article") {
		t.Errorf("plan output lacks the foreign row note:\n%s", out)
	}
	if strings.Contains(strings.ToLower(out), "suppressed") {
		t.Errorf("plan output claims removals were suppressed:\n%s", out)
	}
	if !strings.Contains(out, "+ genre 3") {
		t.Errorf("plan output lacks the addition:\n%s", out)
	}

	buf.Reset()
	report.Unattributed = 0
	printPlan(&buf, report)
	if strings.Contains(buf.String(), "did not belong") {
		t.Errorf("note printed without foreign rows:\n%s", buf.String())
	}
}

// startBackend runs the dev backend and isolates the CLI's home directory and keyring.
func startBackend(t *testing.T) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	keyring.MockInit()
	t.Setenv("HOME", t.TempDir())

	backend := devserver.New(devserver.NewMemoryStore(), devserver.Options{AssociationPath: "articles-genres"}, nil)
	ctx := context.Background()
	if err := backend.EnsureAdmin(ctx, "admin", "secret"); err != nil {
		t.Fatal(err)
	}
	if err := backend.AddUser(ctx, "reader", "secret"); err != nil {
		t.Fatal(err)
	}
	if err := backend.Seed(ctx); err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(backend.Handler())
	t.Cleanup(ts.Close)
	return ts.URL + "/api"
}

func run(t *testing.T, baseURL string, args ...string) error {
	t.Helper()
	argv := append([]string{"weebctl", "--api-url", baseURL, "--log-level", "error"}, args...)
	return NewApp("test").Run(argv)
}

func TestArticleGenresCommand(t *testing.T) {
	baseURL := startBackend(t)

	if err := run(t, baseURL, "login", "-u", "admin", "-p", "secret"); err != nil {
		t.Fatalf("login error = %v", err)
	}
	session, err := config.LoadSession()
	if err != nil || session.Username != "admin" {
		t.Fatalf("session after login = %+v, %v", session, err)
	}

	verify := api.NewClient(config.APIConfig{BaseURL: baseURL, Timeout: 5 * time.Second}, nil)
	genres, err := verify.ListGenres(context.Background())
	if err != nil || len(genres) < 3 {
		t.Fatalf("ListGenres() = %v, %v", genres, err)
	}
	g := func(i int) string { return strconv.FormatInt(genres[i].ID, 10) }

	if err := run(t, baseURL, "article", "create", "--title", "Dungeon Meshi", "--content", "# Cooking", "--genre", g(0)); err != nil {
		t.Fatalf("article create error = %v", err)
	}
	articles, _, err := verify.ListArticles(context.Background(), api.ListOptions{Search: "meshi"})
	if err != nil || len(articles) != 1 {
		t.Fatalf("ListArticles() = %v, %v", articles, err)
	}
	id := strconv.FormatInt(articles[0].ID, 10)

	current := func() []int64 {
		t.Helper()
		a, err := verify.GetArticle(context.Background(), articles[0].ID)
		if err != nil {
			t.Fatal(err)
		}
		return a.GenreIDs()
	}
	if diff := cmp.Diff([]int64{genres[0].ID}, current()); diff != "" {
		t.Errorf("genres after create mismatch (-want +got):\n%s", diff)
	}

	if err := run(t, baseURL, "article", "genres", "--dry-run", id, g(1)); err != nil {
		t.Fatalf("article genres --dry-run error = %v", err)
	}
	if diff := cmp.Diff([]int64{genres[0].ID}, current()); diff != "" {
		t.Errorf("dry run changed genres (-want +got):\n%s", diff)
	}

	if err := run(t, baseURL, "article", "genres", id, g(1), g(2)); err != nil {
		t.Fatalf("article genres error = %v", err)
	}
	got := current()
	if len(got) != 2 || !contains(got, genres[1].ID) || !contains(got, genres[2].ID) {
		t.Errorf("genres after reconcile = %v, want [%d %d]", got, genres[1].ID, genres[2].ID)
	}

	if err := run(t, baseURL, "article", "genres", id); err == nil {
		t.Error("article genres without ids or --clear succeeded")
	}
	if err := run(t, baseURL, "article", "genres", "--clear", id); err != nil {
		t.Fatalf("article genres --clear error = %v", err)
	}
	if got := current(); len(got) != 0 {
		t.Errorf("genres after --clear = %v, want none", got)
	}

	if err := run(t, baseURL, "article", "genres", id, "999999"); err == nil {
		t.Error("unknown genre id did not fail in strict mode")
	}
	if err := run(t, baseURL, "--lenient", "article", "genres", id, "999999"); err != nil {
		t.Errorf("unknown genre id failed in lenient mode: %v", err)
	}

	if err := run(t, baseURL, "logout"); err != nil {
		t.Fatalf("logout error = %v", err)
	}
	if err := run(t, baseURL, "article", "genres", id, g(0)); err == nil {
		t.Error("article genres after logout succeeded")
	}
}

func TestReaderCannotManageGenres(t *testing.T) {
	baseURL := startBackend(t)

	if err := run(t, baseURL, "login", "-u", "reader", "-p", "secret"); err != nil {
		t.Fatalf("login error = %v", err)
	}
	if err := run(t, baseURL, "genre", "list"); err != nil {
		t.Errorf("genre list error = %v", err)
	}
	if err := run(t, baseURL, "genre", "create", "Sports"); err == nil {
		t.Error("reader created a genre")
	}
	if err := run(t, baseURL, "genre", "create", "--color", "red", "Sports"); err == nil {
		t.Error("invalid color accepted")
	}
}

func TestLoginWithWrongPassword(t *testing.T) {
	baseURL := startBackend(t)
	if err := run(t, baseURL, "login", "-u", "admin", "-p", "nope"); err == nil {
		t.Fatal("login with wrong password succeeded")
	}
	session, err := config.LoadSession()
	if err != nil {
		t.Fatal(err)
	}
	if session.Username != "" {
		t.Errorf("session written after failed login: %+v", session)
	}
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
