package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/virtualpost/forwarding-api/internal/models"
)

// ContextOperatorKey is where the resolved operator identity lives in the
// Gin context.
const ContextOperatorKey = "operator"

const (
	operatorIDHeader   = "X-Operator-ID"
	operatorNameHeader = "X-Operator-Name"
)

// Operator extracts the operator identity the gateway attached to the
// request. Authentication happens upstream; this service only needs a
// stable identity for lock ownership and the audit trail.
func Operator() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(operatorIDHeader))
		if id != "" {
			c.Set(ContextOperatorKey, &models.Operator{
				ID:          id,
				DisplayName: strings.TrimSpace(c.GetHeader(operatorNameHeader)),
			})
		}
		c.Next()
	}
}
