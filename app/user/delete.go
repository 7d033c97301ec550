package user

import (
	"bitwise74/user-api/app/respond"
	"bitwise74/user-api/internal"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// UserDelete removes the selected accounts for good, their emails can be
// registered again right away
func UserDelete(c *gin.Context, d *internal.Deps) {
	ids, ok := bindIDs(c)
	if !ok {
		return
	}

	refs, err := d.Accounts.Delete(c.Request.Context(), ids)
	if err != nil {
		respond.Error(c, d.Debug, err, "Failed to delete users")
		return
	}

	c.JSON(http.StatusOK, bulkResponse(c, fmt.Sprintf("%d user(s) deleted successfully", len(refs)), "deletedUsers", refs))
}
