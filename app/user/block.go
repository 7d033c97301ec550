package user

import (
	"bitwise74/user-api/app/respond"
	"bitwise74/user-api/internal"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

func UserBlock(c *gin.Context, d *internal.Deps) {
	ids, ok := bindIDs(c)
	if !ok {
		return
	}

	refs, err := d.Accounts.Block(c.Request.Context(), ids)
	if err != nil {
		respond.Error(c, d.Debug, err, "Failed to block users")
		return
	}

	c.JSON(http.StatusOK, bulkResponse(c, fmt.Sprintf("%d user(s) blocked successfully", len(refs)), "blockedUsers", refs))
}
