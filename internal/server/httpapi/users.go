package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/gophsocial/internal/server/models"
	"github.com/dmitrijs2005/gophsocial/internal/server/services"
	"github.com/gin-gonic/gin"
)

type credentialsRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type profileRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type passwordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

type emailRequest struct {
	Email string `json:"email" binding:"required"`
}

type resetRequest struct {
	Password string `json:"password" binding:"required"`
}

type userResponse struct {
	Success bool         `json:"success"`
	User    *models.User `json:"user"`
	Token   string       `json:"token,omitempty"`
}

type connectionsResponse struct {
	Success   bool           `json:"success"`
	Followers []*models.User `json:"followers"`
	Following []*models.User `json:"following"`
}

type followResponse struct {
	Success bool                 `json:"success"`
	State   services.FollowState `json:"state"`
}

type stepView struct {
	Step   services.CascadeStep `json:"step"`
	Target string               `json:"target"`
	Status services.StepStatus  `json:"status"`
	Error  string               `json:"error,omitempty"`
}

type deleteMeResponse struct {
	Success bool       `json:"success"`
	UserID  string     `json:"user_id"`
	Steps   []stepView `json:"steps"`
}

type okResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func (s *HTTPServer) register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	u, err := s.svc.Users.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, userResponse{Success: true, User: u})
}

func (s *HTTPServer) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	token, u, err := s.svc.Users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(tokenCookie, token, int(s.tokenTTL.Seconds()), "/", "", false, true)
	c.JSON(http.StatusOK, userResponse{Success: true, User: u, Token: token})
}

func (s *HTTPServer) logout(c *gin.Context) {
	c.SetCookie(tokenCookie, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, okResponse{Success: true, Message: "logged out"})
}

func (s *HTTPServer) me(c *gin.Context) {
	u, err := s.svc.Users.Me(c.Request.Context(), actorID(c))
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, userResponse{Success: true, User: u})
}

func (s *HTTPServer) connections(c *gin.Context) {
	followers, following, err := s.svc.Users.Connections(c.Request.Context(), actorID(c))
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, connectionsResponse{Success: true, Followers: followers, Following: following})
}

func (s *HTTPServer) updateProfile(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	u, err := s.svc.Users.UpdateProfile(c.Request.Context(), actorID(c), req.Name, req.Email)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, userResponse{Success: true, User: u})
}

func (s *HTTPServer) updatePassword(c *gin.Context) {
	var req passwordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	if err := s.svc.Users.UpdatePassword(c.Request.Context(), actorID(c), req.OldPassword, req.NewPassword); err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, okResponse{Success: true, Message: "password updated"})
}

func (s *HTTPServer) forgotPassword(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	if err := s.svc.Users.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, okResponse{Success: true, Message: "reset link sent to " + req.Email})
}

func (s *HTTPServer) resetPassword(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	if err := s.svc.Users.ResetPassword(c.Request.Context(), c.Param("token"), req.Password); err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, okResponse{Success: true, Message: "password updated"})
}

func (s *HTTPServer) toggleFollow(c *gin.Context) {
	state, err := s.svc.Relationships.ToggleFollow(c.Request.Context(), actorID(c), c.Param("id"))
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, followResponse{Success: true, State: state})
}

// deleteMe runs the account cascade for the caller and returns its report.
func (s *HTTPServer) deleteMe(c *gin.Context) {
	report, err := s.svc.Cascade.DeleteAccount(c.Request.Context(), actorID(c))
	if err != nil {
		s.abort(c, err)
		return
	}
	resp := deleteMeResponse{Success: true, UserID: report.UserID, Steps: make([]stepView, 0, len(report.Steps))}
	for _, st := range report.Steps {
		v := stepView{Step: st.Step, Target: st.Target, Status: st.Status}
		if st.Err != nil {
			v.Error = st.Err.Error()
		}
		resp.Steps = append(resp.Steps, v)
	}
	c.SetCookie(tokenCookie, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, resp)
}
