package mcp

import (
	"context"
	"errors"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/melissa98m/weeb-website-sub000/internal/api"
	"github.com/melissa98m/weeb-website-sub000/internal/models"
)

// ToolInfo describes a registered tool for the `mcp tools` command.
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Mutating    bool   `json:"mutating"`
}

// Tools lists every tool the server registers, in registration order.
var Tools = []ToolInfo{
	{Name: "list_articles", Description: "List articles, optionally filtered by a search term. Paginated."},
	{Name: "get_article", Description: "Get one article with its content and genres."},
	{Name: "list_genres", Description: "List every genre with its id, name and color."},
	{Name: "plan_article_genres", Description: "Preview the genre changes set_article_genres would make. Changes nothing."},
	{Name: "set_article_genres", Description: "Make an article's genres exactly equal to genre_ids. Genres not listed are removed.", Mutating: true},
}

func toolDescription(name string) string {
	for _, t := range Tools {
		if t.Name == name {
			return t.Description
		}
	}
	return ""
}

// registerTools registers all MCP tools; input schemas are inferred from the input structs.
func (s *Server) registerTools(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_articles",
		Description: toolDescription("list_articles"),
	}, s.handleListArticles)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_article",
		Description: toolDescription("get_article"),
	}, s.handleGetArticle)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_genres",
		Description: toolDescription("list_genres"),
	}, s.handleListGenres)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "plan_article_genres",
		Description: toolDescription("plan_article_genres"),
	}, s.handlePlanArticleGenres)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "set_article_genres",
		Description: toolDescription("set_article_genres"),
	}, s.handleSetArticleGenres)
}

type EmptyInput struct{}

type ListArticlesInput struct {
	Search   string `json:"search,omitempty" jsonschema:"case-insensitive text searched in title and content"`
	Page     int    `json:"page,omitempty" jsonschema:"1-based page number"`
	PageSize int    `json:"page_size,omitempty" jsonschema:"results per page"`
}

func (s *Server) handleListArticles(ctx context.Context, req *mcp.CallToolRequest, input ListArticlesInput) (*mcp.CallToolResult, any, error) {
	s.session.Touch()
	opts := api.ListOptions{
		Page:     input.Page,
		PageSize: input.PageSize,
		Search:   strings.TrimSpace(input.Search),
	}
	articles, total, err := s.client.ListArticles(ctx, opts)
	if err != nil {
		return errorResult(err), nil, nil
	}

	items := make([]map[string]interface{}, 0, len(articles))
	for _, a := range articles {
		items = append(items, map[string]interface{}{
			"id":     a.ID,
			"title":  a.Title,
			"genres": genreSummary(a.Genres),
		})
	}
	resp := s.formatMCPResponse(items)
	resp["total"] = total
	return mustTextResult(resp), nil, nil
}

type GetArticleInput struct {
	ID int64 `json:"id" jsonschema:"article id"`
}

func (s *Server) handleGetArticle(ctx context.Context, req *mcp.CallToolRequest, input GetArticleInput) (*mcp.CallToolResult, any, error) {
	s.session.Touch()
	if input.ID <= 0 {
		return errorResult(errors.New("id is required")), nil, nil
	}
	article, err := s.client.GetArticle(ctx, input.ID)
	if err != nil {
		return errorResult(err), nil, nil
	}
	resp := s.formatMCPResponse(article)
	resp["genres"] = genreSummary(article.Genres)
	return mustTextResult(resp), nil, nil
}

func (s *Server) handleListGenres(ctx context.Context, req *mcp.CallToolRequest, input EmptyInput) (*mcp.CallToolResult, any, error) {
	s.session.Touch()
	genres, err := s.client.ListGenres(ctx)
	if err != nil {
		return errorResult(err), nil, nil
	}
	return mustTextResult(s.formatMCPResponse(genres)), nil, nil
}

type ArticleGenresInput struct {
	ArticleID int64   `json:"article_id" jsonschema:"article id"`
	GenreIDs  []int64 `json:"genre_ids" jsonschema:"the complete desired list of genre ids, empty clears every genre"`
}

func (in ArticleGenresInput) desired() []models.Genre {
	genres := make([]models.Genre, 0, len(in.GenreIDs))
	for _, id := range in.GenreIDs {
		genres = append(genres, models.Genre{ID: id})
	}
	return genres
}

func (s *Server) handlePlanArticleGenres(ctx context.Context, req *mcp.CallToolRequest, input ArticleGenresInput) (*mcp.CallToolResult, any, error) {
	s.session.Touch()
	if input.ArticleID <= 0 {
		return errorResult(errors.New("article_id is required")), nil, nil
	}
	report, err := s.reconciler.Plan(ctx, input.ArticleID, input.desired())
	if err != nil {
		return errorResult(err), nil, nil
	}
	return mustTextResult(s.formatMCPResponse(report)), nil, nil
}

func (s *Server) handleSetArticleGenres(ctx context.Context, req *mcp.CallToolRequest, input ArticleGenresInput) (*mcp.CallToolResult, any, error) {
	s.session.Touch()
	if input.ArticleID <= 0 {
		return errorResult(errors.New("article_id is required")), nil, nil
	}
	if _, err := s.client.RequireContentManager(ctx); err != nil {
		return errorResult(err), nil, nil
	}

	report, err := s.reconciler.Reconcile(ctx, input.ArticleID, input.desired())
	if report == nil {
		return errorResult(err), nil, nil
	}

	resp := s.formatMCPResponse(report)
	if err != nil {
		// partial failures still return the report
		resp["error"] = err.Error()
		s.logger.Warn("set_article_genres incomplete", zap.Int64("article", input.ArticleID), zap.Error(err))
		res := mustTextResult(resp)
		res.IsError = true
		return res, nil, nil
	}
	if perr := report.Err(); perr != nil {
		resp["warning"] = perr.Error()
	}
	return mustTextResult(resp), nil, nil
}

func genreSummary(refs []models.Ref) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(refs))
	for _, ref := range refs {
		id, ok := ref.Resolve()
		if !ok {
			continue
		}
		g := map[string]interface{}{"id": id}
		if name := ref.Name(); name != "" {
			g["name"] = name
		}
		out = append(out, g)
	}
	return out
}
