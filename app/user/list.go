package user

import (
	"bitwise74/user-api/app/respond"
	"bitwise74/user-api/internal"
	"bitwise74/user-api/internal/model"
	"net/http"

	"github.com/gin-gonic/gin"
)

// UserList returns every user, most recent login first and never logged
// in users last
func UserList(c *gin.Context, d *internal.Deps) {
	users, err := d.Accounts.List(c.Request.Context())
	if err != nil {
		respond.Error(c, d.Debug, err, "Failed to fetch users")
		return
	}

	if users == nil {
		users = []model.User{}
	}

	c.JSON(http.StatusOK, gin.H{
		"users": users,
	})
}
