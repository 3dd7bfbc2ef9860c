package serve

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// originPolicy is the set of browser origins allowed to call the API. An
// empty list allows every origin.
type originPolicy struct {
	any     bool
	allowed map[string]struct{}
}

func newOriginPolicy(csv string) originPolicy {
	p := originPolicy{allowed: map[string]struct{}{}}
	for _, part := range strings.Split(csv, ",") {
		switch v := strings.TrimSpace(part); v {
		case "":
		case "*":
			p.any = true
		default:
			p.allowed[v] = struct{}{}
		}
	}
	if len(p.allowed) == 0 {
		p.any = true
	}
	return p
}

func (p originPolicy) allows(origin string) bool {
	if origin == "" {
		return false
	}
	if p.any {
		return true
	}
	_, ok := p.allowed[origin]
	return ok
}

// corsMiddleware echoes allowed origins and answers preflight requests
// itself. Other OPTIONS requests fall through to routing, which rejects them
// as an unsupported method.
func corsMiddleware(originsCSV string) gin.HandlerFunc {
	policy := newOriginPolicy(originsCSV)
	return func(c *gin.Context) {
		origin := strings.TrimSpace(c.GetHeader("Origin"))
		if !policy.allows(origin) {
			c.Next()
			return
		}
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Add("Vary", "Origin")
		h.Set("Access-Control-Allow-Credentials", "true")

		if c.Request.Method == http.MethodOptions && c.GetHeader("Access-Control-Request-Method") != "" {
			h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT")
			h.Set("Access-Control-Max-Age", "600")
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
