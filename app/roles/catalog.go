// Package roles contains the role catalog and membership endpoints
package roles

import (
	"net/http"
	"strconv"

	"bitwise74/marketplace-auth/app/status"
	"bitwise74/marketplace-auth/internal"
	"bitwise74/marketplace-auth/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.Fail(c, http.StatusBadRequest, "Invalid "+name)
		return 0, false
	}

	return id, true
}

func List(c *gin.Context, d *internal.Deps) {
	roles, err := d.Roles.ListAllRoles(c.Request.Context())
	if err != nil {
		status.Fail(c, err, "Failed to list roles")
		return
	}

	response.OK(c, http.StatusOK, roles)
}

func Get(c *gin.Context, d *internal.Deps) {
	role, err := d.Roles.GetRoleBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		status.Fail(c, err, "Failed to fetch role")
		return
	}

	response.OK(c, http.StatusOK, role)
}

type createBody struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// Create adds a role to the catalog. The slug is derived from the name when
// omitted.
func Create(c *gin.Context, d *internal.Deps) {
	var data createBody
	if err := c.ShouldBindJSON(&data); err != nil {
		response.Fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	role, err := d.Roles.CreateRole(c.Request.Context(), data.Slug, data.Name)
	if err != nil {
		status.Fail(c, err, "Failed to create role")
		return
	}

	zap.L().Info("Role created", zap.String("slug", role.Slug), zap.String("requestID", response.RequestID(c)))
	response.OK(c, http.StatusCreated, role)
}

// Delete removes the role and every membership of it
func Delete(c *gin.Context, d *internal.Deps) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := d.Roles.DeleteRole(c.Request.Context(), id); err != nil {
		status.Fail(c, err, "Failed to delete role")
		return
	}

	response.OK(c, http.StatusOK, nil)
}
