package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mossy-p/classroom-signaling/internal/broker"
)

// GetSession returns whether a presenter is live and how many viewers are
// connected (public).
func GetSession(b *broker.Broker) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, b.Summary())
	}
}

// GetRoster returns the full attendants list (requires JWT).
func GetRoster(b *broker.Broker) gin.HandlerFunc {
	return func(c *gin.Context) {
		list := b.Snapshot()
		c.JSON(http.StatusOK, gin.H{
			"list":        list,
			"connections": b.Connections(),
			"requestedBy": c.GetString("subject"),
		})
	}
}
