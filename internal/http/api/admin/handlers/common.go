package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mokykla/pointsapi/internal/ledger"
	"github.com/mokykla/pointsapi/internal/models"
	log "github.com/sirupsen/logrus"
)

// currentUser extracts the authenticated admin from gin context.
func currentUser(c *gin.Context) *models.User {
	val, exists := c.Get("currentUser")
	if !exists {
		return nil
	}
	user, ok := val.(*models.User)
	if !ok {
		return nil
	}
	return user
}

// pathID parses the :id path parameter.
func pathID(c *gin.Context) (uint64, bool) {
	id, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// renderServiceError maps a ledger error to an HTTP response.
func renderServiceError(c *gin.Context, err error) {
	if domainErr, ok := ledger.AsError(err); ok {
		status := http.StatusBadRequest
		switch domainErr.Code {
		case ledger.CodeForbidden:
			status = http.StatusForbidden
		case ledger.CodeNotFound, ledger.CodeProfileNotFound:
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{
			"error": domainErr.Message,
			"code":  domainErr.Code,
		})
		return
	}
	log.Errorf("admin operation failed: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
