package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/forumposts/middleware"
	"github.com/cppla/forumposts/models"
	"github.com/cppla/forumposts/services"
	"github.com/cppla/forumposts/utils"
)

// PostController exposes post operations over HTTP. Failures are attached
// to the context and rendered by middleware.ErrorHandler.
type PostController struct {
	posts *services.PostService
}

// NewPostController creates a new PostController instance.
func NewPostController(posts *services.PostService) *PostController {
	return &PostController{posts: posts}
}

// CreatePost stores a post for the author in the path.
// Expects middleware.ValidateJSON[models.NewPost].
func (p *PostController) CreatePost(ctx *gin.Context) {
	req := middleware.Body[models.NewPost](ctx)

	title, err := cleanText("title", req.Title)
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	content, err := cleanText("content", req.Content)
	if err != nil {
		_ = ctx.Error(err)
		return
	}

	post, err := p.posts.CreatePost(ctx.Request.Context(), ctx.Param("author"), models.NewPost{
		Title:   title,
		Content: content,
		Tags:    req.Tags,
	})
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	utils.Respond(ctx, http.StatusCreated, post)
}

func (p *PostController) GetPost(ctx *gin.Context) {
	post, err := p.posts.GetPostByID(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	utils.Success(ctx, post)
}

// DeletePost responds with the post as it was before removal.
func (p *PostController) DeletePost(ctx *gin.Context) {
	post, err := p.posts.DeletePost(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	utils.Success(ctx, post)
}

func (p *PostController) AddLike(ctx *gin.Context) {
	if _, err := p.posts.AddLike(ctx.Request.Context(), ctx.Param("id")); err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

// AddComment expects middleware.ValidateJSON[models.NewComment].
func (p *PostController) AddComment(ctx *gin.Context) {
	req := middleware.Body[models.NewComment](ctx)

	message, err := cleanText("message", req.Message)
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	post, err := p.posts.AddComment(ctx.Request.Context(), ctx.Param("id"), ctx.Param("user"), message)
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	utils.Success(ctx, post)
}

func (p *PostController) GetPostsByAuthor(ctx *gin.Context) {
	posts, err := p.posts.GetPostsByAuthor(ctx.Request.Context(), ctx.Param("author"))
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	utils.Success(ctx, posts)
}

// GetPostsByTags reads the comma separated "values" query parameter.
func (p *PostController) GetPostsByTags(ctx *gin.Context) {
	posts, err := p.posts.GetPostsByTags(ctx.Request.Context(), ctx.Query("values"))
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	utils.Success(ctx, posts)
}

func (p *PostController) GetPostsByPeriod(ctx *gin.Context) {
	posts, err := p.posts.GetPostsByPeriod(ctx.Request.Context(), ctx.Query("dateFrom"), ctx.Query("dateTo"))
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	utils.Success(ctx, posts)
}

// UpdatePost expects middleware.ValidateJSON[models.PostPatch].
func (p *PostController) UpdatePost(ctx *gin.Context) {
	patch := middleware.Body[models.PostPatch](ctx)

	if patch.Title != nil {
		title, err := cleanText("title", *patch.Title)
		if err != nil {
			_ = ctx.Error(err)
			return
		}
		patch.Title = &title
	}
	if patch.Content != nil {
		content, err := cleanText("content", *patch.Content)
		if err != nil {
			_ = ctx.Error(err)
			return
		}
		patch.Content = &content
	}

	post, err := p.posts.UpdatePost(ctx.Request.Context(), ctx.Param("id"), patch)
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	utils.Success(ctx, post)
}

// cleanText strips unsafe HTML and rejects values that end up empty.
func cleanText(field, raw string) (string, error) {
	clean := strings.TrimSpace(utils.Sanitize(raw))
	if clean == "" {
		return "", models.NewValidationError(field, "cannot be empty")
	}
	return clean, nil
}
