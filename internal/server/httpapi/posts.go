package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/gophsocial/internal/server/models"
	"github.com/gin-gonic/gin"
)

type createPostRequest struct {
	Caption string `json:"caption"`
	Image   bool   `json:"image"`
}

type captionRequest struct {
	Caption string `json:"caption"`
}

type commentRequest struct {
	Text string `json:"comment" binding:"required"`
}

type postResponse struct {
	Success   bool         `json:"success"`
	Post      *models.Post `json:"post"`
	UploadURL string       `json:"upload_url,omitempty"`
}

type postsResponse struct {
	Success bool           `json:"success"`
	Posts   []*models.Post `json:"posts"`
}

type likeResponse struct {
	Success bool `json:"success"`
	Liked   bool `json:"liked"`
}

type imageResponse struct {
	Success bool   `json:"success"`
	URL     string `json:"url"`
}

func (s *HTTPServer) createPost(c *gin.Context) {
	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	p, uploadURL, err := s.svc.Posts.CreatePost(c.Request.Context(), actorID(c), req.Caption, req.Image)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, postResponse{Success: true, Post: p, UploadURL: uploadURL})
}

func (s *HTTPServer) getPost(c *gin.Context) {
	p, err := s.svc.Posts.GetPost(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, postResponse{Success: true, Post: p})
}

func (s *HTTPServer) allPosts(c *gin.Context) {
	s.writePosts(c)(s.svc.Posts.AllPosts(c.Request.Context()))
}

func (s *HTTPServer) userPosts(c *gin.Context) {
	s.writePosts(c)(s.svc.Posts.UserPosts(c.Request.Context(), c.Param("id")))
}

func (s *HTTPServer) feed(c *gin.Context) {
	s.writePosts(c)(s.svc.Posts.Feed(c.Request.Context(), actorID(c)))
}

func (s *HTTPServer) writePosts(c *gin.Context) func([]*models.Post, error) {
	return func(list []*models.Post, err error) {
		if err != nil {
			s.abort(c, err)
			return
		}
		if list == nil {
			list = []*models.Post{}
		}
		c.JSON(http.StatusOK, postsResponse{Success: true, Posts: list})
	}
}

func (s *HTTPServer) updateCaption(c *gin.Context) {
	var req captionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	s.writePost(c)(s.svc.Posts.UpdateCaption(c.Request.Context(), c.Param("id"), actorID(c), req.Caption))
}

func (s *HTTPServer) deletePost(c *gin.Context) {
	if err := s.svc.Posts.DeletePost(c.Request.Context(), c.Param("id"), actorID(c)); err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, okResponse{Success: true, Message: "post deleted"})
}

func (s *HTTPServer) imageURL(c *gin.Context) {
	url, err := s.svc.Posts.ImageURL(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, imageResponse{Success: true, URL: url})
}

func (s *HTTPServer) toggleLike(c *gin.Context) {
	liked, err := s.svc.Engagement.ToggleLike(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, likeResponse{Success: true, Liked: liked})
}

func (s *HTTPServer) addComment(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	p, err := s.svc.Engagement.AddComment(c.Request.Context(), c.Param("id"), actorID(c), req.Text)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, postResponse{Success: true, Post: p})
}

func (s *HTTPServer) updateComment(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	s.writePost(c)(s.svc.Engagement.UpdateComment(c.Request.Context(), c.Param("id"), c.Param("commentID"), actorID(c), req.Text))
}

func (s *HTTPServer) deleteComment(c *gin.Context) {
	s.writePost(c)(s.svc.Engagement.DeleteComment(c.Request.Context(), c.Param("id"), c.Param("commentID"), actorID(c)))
}

func (s *HTTPServer) writePost(c *gin.Context) func(*models.Post, error) {
	return func(p *models.Post, err error) {
		if err != nil {
			s.abort(c, err)
			return
		}
		c.JSON(http.StatusOK, postResponse{Success: true, Post: p})
	}
}
