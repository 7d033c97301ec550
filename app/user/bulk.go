package user

import (
	"bitwise74/user-api/app/respond"
	"bitwise74/user-api/internal/model"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// maxBulkIDs keeps a single statement well under the postgres bind
// parameter limit
const maxBulkIDs = 1000

type bulkBody struct {
	UserIDs []uint `json:"userIds"`
}

// bindIDs reads the selected ids. A missing body is the same as an empty
// selection and is rejected further down by the service.
func bindIDs(c *gin.Context) ([]uint, bool) {
	var data bulkBody
	if err := c.ShouldBindJSON(&data); err != nil && !errors.Is(err, io.EOF) {
		respond.BindError(c, err)
		return nil, false
	}

	if len(data.UserIDs) > maxBulkIDs {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Too many users selected",
			"requestID": c.GetString("requestID"),
		})
		return nil, false
	}

	return data.UserIDs, true
}

// affectsCaller reports whether the authenticated user is among refs, in
// which case the client should drop its session
func affectsCaller(c *gin.Context, refs []model.UserRef) bool {
	self := c.GetUint("userID")
	for _, r := range refs {
		if r.ID == self {
			return true
		}
	}
	return false
}

func nonNil(refs []model.UserRef) []model.UserRef {
	if refs == nil {
		return []model.UserRef{}
	}
	return refs
}

// bulkResponse is used by the actions that can lock the caller out
func bulkResponse(c *gin.Context, message, key string, refs []model.UserRef) gin.H {
	body := gin.H{
		"message":   message,
		key:         nonNil(refs),
		"requestID": c.GetString("requestID"),
	}
	if affectsCaller(c, refs) {
		body["redirect"] = true
	}
	return body
}
