// Package respond turns service errors into JSON error bodies
package respond

import (
	"bitwise74/user-api/internal/service"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type mapped struct {
	status  int
	message string
}

var known = []struct {
	err error
	mapped
}{
	{service.ErrNameRequired, mapped{http.StatusBadRequest, "Name is required"}},
	{service.ErrEmailInvalid, mapped{http.StatusBadRequest, "Valid email is required"}},
	{service.ErrPasswordRequired, mapped{http.StatusBadRequest, "Password is required"}},
	{service.ErrEmailTaken, mapped{http.StatusBadRequest, "This email is already registered. Please use a different email or login."}},
	{service.ErrInvalidCredentials, mapped{http.StatusUnauthorized, "Invalid email or password"}},
	{service.ErrAccountBlocked, mapped{http.StatusForbidden, "Your account has been blocked. Please contact administrator."}},
	{service.ErrVerificationFailed, mapped{http.StatusBadRequest, "Verification failed. The link is invalid, expired or the account is no longer unverified."}},
	{service.ErrNoUsersSelected, mapped{http.StatusBadRequest, "No users selected"}},
}

var fieldMessages = map[string]string{
	"name":     "Name is required",
	"email":    "Valid email is required",
	"password": "Password is required",
	"userids":  "User ids must be a list of numbers",
}

// Error writes the response for err. Known service errors get their own
// status and message, anything else is logged and reported as a 500 with
// msg as the error text.
func Error(c *gin.Context, debug bool, err error, msg string) {
	requestID := c.GetString("requestID")

	for _, k := range known {
		if errors.Is(err, k.err) {
			c.JSON(k.status, gin.H{
				"error":     k.message,
				"requestID": requestID,
			})
			return
		}
	}

	body := gin.H{
		"error":     msg,
		"requestID": requestID,
	}
	if debug {
		body["details"] = err.Error()
	}

	c.JSON(http.StatusInternalServerError, body)

	zap.L().Error(msg, zap.Error(err), zap.String("requestID", requestID))
}

// BindError reports a request body that failed to bind or validate
func BindError(c *gin.Context, err error) {
	requestID := c.GetString("requestID")

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error":     "Request body size exceeds limit",
			"requestID": requestID,
		})
		return
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		zap.L().Debug("Can't bind request body", zap.Error(err), zap.String("requestID", requestID))

		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid request body",
			"requestID": requestID,
		})
		return
	}

	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		name := strings.ToLower(fe.Field())

		m, ok := fieldMessages[name]
		if !ok {
			m = fe.Error()
		}

		fields = append(fields, FieldError{Field: name, Message: m})
	}

	c.JSON(http.StatusBadRequest, gin.H{
		"error":     fields[0].Message,
		"errors":    fields,
		"requestID": requestID,
	})
}
