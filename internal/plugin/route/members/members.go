package members

import (
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/chirino/askbox/internal/apierror"
	"github.com/chirino/askbox/internal/members"
	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	UID         *string `json:"uid"`
	Email       *string `json:"email"`
	DisplayName *string `json:"displayName"`
	PhotoURL    *string `json:"photoURL"`
}

type registerResponse struct {
	Result  bool   `json:"result"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
}

// MountRoutes mounts member registration and handle lookup routes.
func MountRoutes(r *gin.Engine, registry *members.Registry) {
	register := func(c *gin.Context) {
		registerMember(c, registry)
	}
	r.POST("/api/members.add", register)
	r.POST("/api/member.add", register)

	r.GET("/api/user.info/:screenName", func(c *gin.Context) {
		userInfo(c, registry)
	})
}

func registerMember(c *gin.Context, registry *members.Registry) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.Write(c, apierror.BadRequest("invalid request body"))
		return
	}
	if isBlank(req.UID) || isBlank(req.Email) {
		apierror.Write(c, apierror.BadRequest("uid or email is missing"))
		return
	}

	_, err := registry.Register(c.Request.Context(), members.RegisterInput{
		UID:         *req.UID,
		Email:       *req.Email,
		DisplayName: req.DisplayName,
		PhotoURL:    req.PhotoURL,
	})
	if err != nil {
		status, message := apierror.Classify(err)
		if status >= http.StatusInternalServerError {
			log.Error("Member registration failed", "uid", *req.UID, "err", err)
		}
		_ = c.Error(err)
		c.AbortWithStatusJSON(status, registerResponse{Result: false, Message: message})
		return
	}
	c.JSON(http.StatusOK, registerResponse{Result: true, ID: *req.UID})
}

func userInfo(c *gin.Context, registry *members.Registry) {
	screenName := c.Param("screenName")
	if screenName == "" {
		apierror.Write(c, apierror.Missing("screenName"))
		return
	}
	handle, err := registry.ResolveHandle(c.Request.Context(), screenName)
	if err != nil {
		apierror.Write(c, err)
		return
	}
	if handle == nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}
	c.JSON(http.StatusOK, handle)
}

func isBlank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}
