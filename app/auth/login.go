package auth

import (
	"bitwise74/user-api/app/respond"
	"bitwise74/user-api/internal"
	"net/http"

	"github.com/gin-gonic/gin"
)

type loginBody struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func AuthLogin(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	var data loginBody
	if err := c.ShouldBindJSON(&data); err != nil {
		respond.BindError(c, err)
		return
	}

	res, err := d.Accounts.Login(c.Request.Context(), data.Email, data.Password)
	if err != nil {
		respond.Error(c, d.Debug, err, "Login failed. Please try again.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Login successful",
		"token":     res.Token,
		"user":      res.User,
		"requestID": requestID,
	})
}
