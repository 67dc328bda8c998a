package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/virtualpost/forwarding-api/internal/middleware"
	"github.com/virtualpost/forwarding-api/internal/models"
)

func operatorFromContext(c *gin.Context) *models.Operator {
	value, exists := c.Get(middleware.ContextOperatorKey)
	if !exists {
		return nil
	}
	operator, ok := value.(*models.Operator)
	if !ok {
		return nil
	}
	return operator
}
