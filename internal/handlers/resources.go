package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/staysignal/backend/internal/middleware"
	"github.com/staysignal/backend/pkg/response"
)

// The admin settings pages (bots, models, prompts, staff) are plain
// tenant-scoped CRUD. These adapters bind the body, pin the caller's tenant
// and map service errors, so each resource only names its service calls.

func createResource[Req, Out any](create func(context.Context, uint, *Req) (Out, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req Req
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		out, err := create(c.Request.Context(), middleware.GetTenantID(c), &req)
		if err != nil {
			writeError(c, err)
			return
		}
		response.Created(c, out)
	}
}

func updateResource[Req, Out any](update func(context.Context, uint, uint, *Req) (Out, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var req Req
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		out, err := update(c.Request.Context(), middleware.GetTenantID(c), id, &req)
		if err != nil {
			writeError(c, err)
			return
		}
		response.Success(c, out)
	}
}

func deleteResource(remove func(context.Context, uint, uint) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		if err := remove(c.Request.Context(), middleware.GetTenantID(c), id); err != nil {
			writeError(c, err)
			return
		}
		response.Success(c, nil)
	}
}

// listResource wraps a slice as {"items": ..., "total": n}, plus any extras.
func listResource[Out any](list func(context.Context, uint) ([]Out, error), extra gin.H) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := list(c.Request.Context(), middleware.GetTenantID(c))
		if err != nil {
			writeError(c, err)
			return
		}
		body := gin.H{"items": items, "total": len(items)}
		for k, v := range extra {
			body[k] = v
		}
		response.Success(c, body)
	}
}
