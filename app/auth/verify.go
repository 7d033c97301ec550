package auth

import (
	"bitwise74/user-api/app/respond"
	"bitwise74/user-api/internal"
	"net/http"

	"github.com/gin-gonic/gin"
)

func AuthVerify(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid verification token",
			"requestID": requestID,
		})
		return
	}

	user, err := d.Accounts.Verify(c.Request.Context(), token)
	if err != nil {
		respond.Error(c, d.Debug, err, "Verification failed. Please try again.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Email verified successfully! You can now login.",
		"user": gin.H{
			"id":     user.ID,
			"email":  user.Email,
			"status": user.Status,
		},
		"requestID": requestID,
	})
}
