package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/payequity/internal/observability/context"
)

const (
	HeaderActor         = "X-Actor"
	contextActorKey     = "actor"
	contextPrincipalKey = "principal"
)

// ActorRequired reads the caller identity set by the upstream gateway.
func (s *Server) ActorRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, err := parseActor(c.GetHeader(HeaderActor))
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(contextActorKey, actor)
		ctx := obscontext.WithActor(c.Request.Context(), string(actor.Type), actor.ID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// CompanyContext tags the request context with the company in the path.
func CompanyContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		companyID := strings.TrimSpace(c.Param("company_id"))
		if companyID != "" {
			c.Request = c.Request.WithContext(obscontext.WithCompanyID(c.Request.Context(), companyID))
		}
		c.Next()
	}
}
