package user

import (
	"bitwise74/user-api/app/respond"
	"bitwise74/user-api/internal"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

func UserUnblock(c *gin.Context, d *internal.Deps) {
	ids, ok := bindIDs(c)
	if !ok {
		return
	}

	refs, err := d.Accounts.Unblock(c.Request.Context(), ids)
	if err != nil {
		respond.Error(c, d.Debug, err, "Failed to unblock users")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":        fmt.Sprintf("%d user(s) unblocked successfully", len(refs)),
		"unblockedUsers": nonNil(refs),
		"requestID":      c.GetString("requestID"),
	})
}
