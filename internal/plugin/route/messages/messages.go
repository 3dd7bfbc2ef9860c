package messages

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/chirino/askbox/internal/apierror"
	"github.com/chirino/askbox/internal/config"
	"github.com/chirino/askbox/internal/messages"
	"github.com/chirino/askbox/internal/model"
	"github.com/chirino/askbox/internal/security"
	"github.com/gin-gonic/gin"
)

type authorRequest struct {
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
}

type postRequest struct {
	UID     *string        `json:"uid"`
	Message *string        `json:"message"`
	Author  *authorRequest `json:"author"`
}

type replyRequest struct {
	UID       *string `json:"uid"`
	MessageID *string `json:"messageId"`
	Reply     *string `json:"reply"`
}

type denyRequest struct {
	UID       *string `json:"uid"`
	MessageID *string `json:"messageId"`
	Deny      *bool   `json:"deny"`
}

// MountRoutes mounts the message ledger routes. auth guards the owner-only
// deny route.
func MountRoutes(r *gin.Engine, ledger *messages.Ledger, cfg *config.Config, auth gin.HandlerFunc) {
	r.POST("/api/messages.add", func(c *gin.Context) {
		postMessage(c, ledger)
	})
	r.POST("/api/messages.add.reply", func(c *gin.Context) {
		postReply(c, ledger)
	})
	r.GET("/api/messages.list", func(c *gin.Context) {
		listMessages(c, ledger, cfg)
	})
	r.GET("/api/messages.info", func(c *gin.Context) {
		getMessage(c, ledger)
	})
	r.PUT("/api/messages.deny", auth, func(c *gin.Context) {
		denyMessage(c, ledger)
	})
}

func postMessage(c *gin.Context, ledger *messages.Ledger) {
	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.Write(c, apierror.BadRequest("invalid request body"))
		return
	}
	if req.UID == nil {
		apierror.Write(c, apierror.Missing("uid"))
		return
	}
	if req.Message == nil {
		apierror.Write(c, apierror.Missing("message"))
		return
	}

	in := messages.PostInput{UID: *req.UID, Message: *req.Message}
	if req.Author != nil {
		if strings.TrimSpace(req.Author.DisplayName) == "" {
			apierror.Write(c, apierror.Missing("author.displayName"))
			return
		}
		in.Author = &model.Author{DisplayName: req.Author.DisplayName, PhotoURL: req.Author.PhotoURL}
	}

	if _, err := ledger.Post(c.Request.Context(), in); err != nil {
		apierror.Write(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

func postReply(c *gin.Context, ledger *messages.Ledger) {
	var req replyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.Write(c, apierror.BadRequest("invalid request body"))
		return
	}
	switch {
	case req.UID == nil:
		apierror.Write(c, apierror.Missing("uid"))
		return
	case req.MessageID == nil:
		apierror.Write(c, apierror.Missing("messageId"))
		return
	case req.Reply == nil:
		apierror.Write(c, apierror.Missing("reply"))
		return
	}

	if err := ledger.Reply(c.Request.Context(), *req.UID, *req.MessageID, *req.Reply); err != nil {
		apierror.Write(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

func listMessages(c *gin.Context, ledger *messages.Ledger, cfg *config.Config) {
	uid, ok := c.GetQuery("uid")
	if !ok {
		apierror.Write(c, apierror.Missing("uid"))
		return
	}
	page, err := queryInt(c, "page", 1)
	if err != nil {
		apierror.Write(c, err)
		return
	}
	size, err := queryInt(c, "size", cfg.DefaultPageSize)
	if err != nil {
		apierror.Write(c, err)
		return
	}

	result, err := ledger.ListPage(c.Request.Context(), uid, int64(page), int64(cfg.ClampPageSize(size)))
	if err != nil {
		apierror.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func getMessage(c *gin.Context, ledger *messages.Ledger) {
	uid, ok := c.GetQuery("uid")
	if !ok {
		apierror.Write(c, apierror.Missing("uid"))
		return
	}
	messageID, ok := c.GetQuery("messageId")
	if !ok {
		apierror.Write(c, apierror.Missing("messageId"))
		return
	}

	view, err := ledger.Get(c.Request.Context(), uid, messageID)
	if err != nil {
		apierror.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func denyMessage(c *gin.Context, ledger *messages.Ledger) {
	var req denyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.Write(c, apierror.BadRequest("invalid request body"))
		return
	}
	if req.UID == nil {
		apierror.Write(c, apierror.Missing("uid"))
		return
	}
	if *req.UID != security.GetUserID(c) {
		apierror.Write(c, apierror.Unauthorized("not allowed to modify this message"))
		return
	}
	if req.MessageID == nil {
		apierror.Write(c, apierror.Missing("messageId"))
		return
	}
	if req.Deny == nil {
		apierror.Write(c, apierror.Missing("deny"))
		return
	}

	view, err := ledger.Deny(c.Request.Context(), *req.UID, *req.MessageID, *req.Deny)
	if err != nil {
		apierror.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// queryInt reads the first value of an integer query parameter.
func queryInt(c *gin.Context, key string, def int) (int, error) {
	v, ok := c.GetQuery(key)
	if !ok || v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, apierror.BadRequest(key + " must be an integer")
	}
	return i, nil
}
