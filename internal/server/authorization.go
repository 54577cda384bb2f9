package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/payequity/internal/authorization"
)

type ActorType string

const (
	ActorUser   ActorType = "user"
	ActorSystem ActorType = "system"
)

type Actor struct {
	Type ActorType
	ID   string
}

func (a Actor) subject() string {
	if a.Type == ActorSystem {
		return string(ActorSystem)
	}
	return string(a.Type) + ":" + a.ID
}

func parseActor(raw string) (Actor, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return Actor{}, ErrUnauthorized
	case raw == string(ActorSystem):
		return Actor{Type: ActorSystem}, nil
	case strings.HasPrefix(raw, "user:"):
		id, err := snowflake.ParseString(strings.TrimPrefix(raw, "user:"))
		if err != nil || id <= 0 {
			return Actor{}, ErrUnauthorized
		}
		return Actor{Type: ActorUser, ID: id.String()}, nil
	default:
		return Actor{}, ErrUnauthorized
	}
}

func (s *Server) authorizeCompanyAction(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if s.authzSvc == nil {
			AbortWithError(c, ErrForbidden)
			return
		}

		principal, err := s.authzSvc.Authorize(c.Request.Context(), actor.subject(), c.Param("company_id"), object, action)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.Set(contextPrincipalKey, principal)
		c.Next()
	}
}

func actorFromContext(c *gin.Context) (Actor, bool) {
	value, ok := c.Get(contextActorKey)
	if !ok {
		return Actor{}, false
	}
	actor, ok := value.(Actor)
	return actor, ok
}

func principalFromContext(c *gin.Context) *authorization.Principal {
	value, ok := c.Get(contextPrincipalKey)
	if !ok {
		return nil
	}
	principal, _ := value.(*authorization.Principal)
	return principal
}

// contractorScope returns the contractor id the caller is limited to, or ""
// when the caller may act for every contractor of the company.
func contractorScope(principal *authorization.Principal) string {
	if principal == nil {
		return ""
	}
	if principal.HasRole(authorization.RoleAdmin) || principal.HasRole(authorization.RoleSystem) {
		return ""
	}
	return principal.ContractorID
}
