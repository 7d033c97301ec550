package user

import (
	"bitwise74/user-api/app/respond"
	"bitwise74/user-api/internal"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

func UserDeleteUnverified(c *gin.Context, d *internal.Deps) {
	refs, err := d.Accounts.DeleteUnverified(c.Request.Context())
	if err != nil {
		respond.Error(c, d.Debug, err, "Failed to delete unverified users")
		return
	}

	c.JSON(http.StatusOK, bulkResponse(c, fmt.Sprintf("%d unverified user(s) deleted successfully", len(refs)), "deletedUsers", refs))
}
