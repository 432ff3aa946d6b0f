package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-chat/pkg/response"
)

// Health reports liveness and the number of connected users.
func Health(online func() []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		response.Success(c, gin.H{
			"status": "ok",
			"online": len(online()),
		})
	}
}
