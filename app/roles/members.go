package roles

import (
	"net/http"

	"bitwise74/marketplace-auth/app/status"
	"bitwise74/marketplace-auth/internal"
	"bitwise74/marketplace-auth/pkg/response"

	"github.com/gin-gonic/gin"
)

func UserRoles(c *gin.Context, d *internal.Deps) {
	userID, ok := paramID(c, "id")
	if !ok {
		return
	}

	roles, err := d.Roles.ListRoles(c.Request.Context(), userID)
	if err != nil {
		status.Fail(c, err, "Failed to list user roles")
		return
	}

	response.OK(c, http.StatusOK, roles)
}

func AddUserRole(c *gin.Context, d *internal.Deps) {
	userID, ok := paramID(c, "id")
	if !ok {
		return
	}

	roleID, ok := paramID(c, "roleID")
	if !ok {
		return
	}

	if err := d.Roles.AddRole(c.Request.Context(), userID, roleID); err != nil {
		status.Fail(c, err, "Failed to add role")
		return
	}

	response.OK(c, http.StatusOK, nil)
}

func RemoveUserRole(c *gin.Context, d *internal.Deps) {
	userID, ok := paramID(c, "id")
	if !ok {
		return
	}

	roleID, ok := paramID(c, "roleID")
	if !ok {
		return
	}

	if err := d.Roles.RemoveRole(c.Request.Context(), userID, roleID); err != nil {
		status.Fail(c, err, "Failed to remove role")
		return
	}

	response.OK(c, http.StatusOK, nil)
}

func RemoveAllUserRoles(c *gin.Context, d *internal.Deps) {
	userID, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := d.Roles.RemoveAllRoles(c.Request.Context(), userID); err != nil {
		status.Fail(c, err, "Failed to remove roles")
		return
	}

	response.OK(c, http.StatusOK, nil)
}

type syncBody struct {
	RoleIDs []int64 `json:"roleIds"`
}

// SyncUserRoles replaces the user's whole role set with roleIds
func SyncUserRoles(c *gin.Context, d *internal.Deps) {
	userID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var data syncBody
	if err := c.ShouldBindJSON(&data); err != nil {
		response.Fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := d.Roles.SyncRoles(c.Request.Context(), userID, data.RoleIDs); err != nil {
		status.Fail(c, err, "Failed to sync roles")
		return
	}

	roles, err := d.Roles.ListRoles(c.Request.Context(), userID)
	if err != nil {
		status.Fail(c, err, "Failed to list user roles")
		return
	}

	response.OK(c, http.StatusOK, roles)
}
