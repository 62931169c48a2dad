package mcp

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/melissa98m/weeb-website-sub000/internal/api"
	"github.com/melissa98m/weeb-website-sub000/internal/config"
	"github.com/melissa98m/weeb-website-sub000/internal/devserver"
	"github.com/melissa98m/weeb-website-sub000/internal/reconcile"
)

func TestWrapResultAsObject(t *testing.T) {
	tests := []struct {
		name      string
		input     interface{}
		wantCount interface{}
		wantKey   string
	}{
		{name: "nil", input: nil, wantCount: 0, wantKey: "items"},
		{name: "slice", input: []interface{}{1, 2}, wantCount: 2, wantKey: "items"},
		{name: "typed slice", input: []string{"a"}, wantCount: 1, wantKey: "items"},
		{name: "map", input: map[string]interface{}{"id": 1}, wantKey: "id"},
		{name: "struct", input: struct {
			Name string `json:"name"`
		}{"x"}, wantKey: "name"},
		{name: "scalar", input: 42, wantKey: "data"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := wrapResultAsObject(tt.input)
			if _, ok := got[tt.wantKey]; !ok {
				t.Errorf("wrapResultAsObject() = %v, missing %q", got, tt.wantKey)
			}
			if tt.wantCount != nil && got["count"] != tt.wantCount {
				t.Errorf("count = %v, want %v", got["count"], tt.wantCount)
			}
		})
	}
}

type harness struct {
	session *mcp.ClientSession
	server  *Server
	client  *api.Client
}

func newHarness(t *testing.T, login bool) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	backend := devserver.New(devserver.NewMemoryStore(), devserver.Options{AssociationPath: "article-genres"}, nil)
	if err := backend.EnsureAdmin(ctx, "admin", "secret"); err != nil {
		t.Fatal(err)
	}
	if err := backend.Seed(ctx); err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(backend.Handler())
	t.Cleanup(ts.Close)

	client := api.NewClient(config.APIConfig{BaseURL: ts.URL + "/api", Timeout: 5 * time.Second}, nil)
	if _, err := client.Login(ctx, "admin", "secret"); err != nil {
		t.Fatal(err)
	}
	if _, err := client.CreateArticle(ctx, "Frieren", "Elves live long.", ""); err != nil {
		t.Fatal(err)
	}
	if !login {
		if err := client.Logout(ctx); err != nil {
			t.Fatal(err)
		}
	}

	locator := reconcile.NewProbingLocator(client, config.DefaultAssociationCandidates, 1000, nil)
	srv, err := NewServer(client, reconcile.New(client, locator, nil, reconcile.Options{Strict: true}), nil)
	if err != nil {
		t.Fatal(err)
	}

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	if _, err := srv.MCPServer().Connect(ctx, serverTransport, nil); err != nil {
		t.Fatalf("server Connect() error = %v", err)
	}
	mcpClient := mcp.NewClient(&mcp.Implementation{Name: "test", Version: "1.0"}, nil)
	session, err := mcpClient.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client Connect() error = %v", err)
	}
	t.Cleanup(func() { session.Close() })

	return &harness{session: session, server: srv, client: client}
}

func (h *harness) call(t *testing.T, name string, args map[string]interface{}) (map[string]interface{}, bool) {
	t.Helper()
	res, err := h.session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("CallTool(%s) error = %v", name, err)
	}
	if len(res.Content) == 0 {
		t.Fatalf("CallTool(%s) returned no content", name)
	}
	text, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s) content is %T, want text", name, res.Content[0])
	}
	var out map[string]interface{}
	if err := json.Unmarshal([]byte(text.Text), &out); err != nil {
		t.Fatalf("CallTool(%s) returned non-JSON %q", name, text.Text)
	}
	return out, res.IsError
}

func TestToolsAreRegistered(t *testing.T) {
	h := newHarness(t, true)
	res, err := h.session.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListTools() error = %v", err)
	}
	got := map[string]bool{}
	for _, tool := range res.Tools {
		got[tool.Name] = true
	}
	for _, want := range Tools {
		if !got[want.Name] {
			t.Errorf("tool %q not registered", want.Name)
		}
	}
	if len(res.Tools) != len(Tools) {
		t.Errorf("registered %d tools, want %d", len(res.Tools), len(Tools))
	}
}

func TestGenreTools(t *testing.T) {
	h := newHarness(t, true)

	genres, isErr := h.call(t, "list_genres", map[string]interface{}{})
	if isErr || genres["count"] != float64(5) {
		t.Fatalf("list_genres = %v", genres)
	}
	if genres["_context"] == "" {
		t.Error("missing _context")
	}
	items := genres["items"].([]interface{})
	first := items[0].(map[string]interface{})["id"]
	second := items[1].(map[string]interface{})["id"]

	articles, _ := h.call(t, "list_articles", map[string]interface{}{"search": "frieren"})
	if articles["total"] != float64(1) {
		t.Fatalf("list_articles = %v", articles)
	}
	articleID := articles["items"].([]interface{})[0].(map[string]interface{})["id"]

	plan, isErr := h.call(t, "plan_article_genres", map[string]interface{}{
		"article_id": articleID,
		"genre_ids":  []interface{}{first, second},
	})
	if isErr || plan["dry_run"] != true {
		t.Fatalf("plan_article_genres = %v", plan)
	}
	if n := len(plan["plan"].(map[string]interface{})["to_add"].([]interface{})); n != 2 {
		t.Errorf("planned %d additions, want 2", n)
	}

	set, isErr := h.call(t, "set_article_genres", map[string]interface{}{
		"article_id": articleID,
		"genre_ids":  []interface{}{second},
	})
	if isErr {
		t.Fatalf("set_article_genres = %v", set)
	}

	article, _ := h.call(t, "get_article", map[string]interface{}{"id": articleID})
	got := article["genres"].([]interface{})
	if len(got) != 1 || got[0].(map[string]interface{})["id"] != second {
		t.Errorf("article genres = %v, want [%v]", got, second)
	}

	if h.server.session.Calls() != 5 {
		t.Errorf("session calls = %d, want 5", h.server.session.Calls())
	}
}

func TestSetArticleGenresRequiresLogin(t *testing.T) {
	h := newHarness(t, false)

	out, isErr := h.call(t, "set_article_genres", map[string]interface{}{"article_id": 1, "genre_ids": []interface{}{}})
	if !isErr {
		t.Fatalf("set_article_genres without login = %v, want error", out)
	}
	if out["error"] == nil {
		t.Errorf("missing error field: %v", out)
	}
}

func TestGetArticleValidatesInput(t *testing.T) {
	h := newHarness(t, true)
	out, isErr := h.call(t, "get_article", map[string]interface{}{"id": 0})
	if !isErr || out["error"] != "id is required" {
		t.Errorf("get_article(0) = %v", out)
	}
}
