package auth

import (
	"bitwise74/user-api/app/respond"
	"bitwise74/user-api/internal"
	"net/http"

	"github.com/gin-gonic/gin"
)

type registerBody struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func AuthRegister(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	var data registerBody
	if err := c.ShouldBindJSON(&data); err != nil {
		respond.BindError(c, err)
		return
	}

	user, err := d.Accounts.Register(c.Request.Context(), data.Name, data.Email, data.Password)
	if err != nil {
		respond.Error(c, d.Debug, err, "Registration failed. Please try again.")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":   "Registration successful! A verification email has been sent to your email address.",
		"user":      user.Profile(),
		"requestID": requestID,
	})
}
