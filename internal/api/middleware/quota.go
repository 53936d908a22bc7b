package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/weblan/neural_go_server/internal/pkg/response"
	"github.com/weblan/neural_go_server/internal/service"
)

// QuotaCheck 配额检查中间件。匿名请求不占配额，直接放行
func QuotaCheck(quotaService *service.QuotaService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := GetUserID(c)
		if !ok {
			c.Next()
			return
		}

		hasQuota, err := quotaService.CheckQuota(userID)
		if err != nil {
			response.ServerError(c, "配额检查失败")
			c.Abort()
			return
		}

		if !hasQuota {
			response.QuotaError(c, "")
			c.Abort()
			return
		}

		c.Next()
	}
}
