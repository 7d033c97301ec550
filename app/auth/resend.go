package auth

import (
	"bitwise74/user-api/app/respond"
	"bitwise74/user-api/internal"
	"net/http"

	"github.com/gin-gonic/gin"
)

type resendBody struct {
	Email string `json:"email" binding:"required,email"`
}

// AuthResend answers the same way whether or not the address belongs to
// an unverified account
func AuthResend(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	var data resendBody
	if err := c.ShouldBindJSON(&data); err != nil {
		respond.BindError(c, err)
		return
	}

	if err := d.Accounts.ResendVerification(c.Request.Context(), data.Email); err != nil {
		respond.Error(c, d.Debug, err, "Failed to resend verification email. Please try again.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "If an unverified account exists for this email, a new verification link has been sent.",
		"requestID": requestID,
	})
}
