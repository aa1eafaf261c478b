package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"fieldreport/backend/internal/config"
	"fieldreport/backend/internal/middleware"
	"fieldreport/backend/internal/monitoring"
	"fieldreport/backend/internal/service"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config        *config.Config
	IssueService  *service.IssueService
	SearchService *service.SearchService
	ExportService *service.ExportService
	Metrics       *monitoring.Metrics // 可为 nil，禁用指标采集
	Logger        *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	// 使用自定义中间件替代默认中间件
	router.Use(middleware.RecoveryHandler(deps.Logger, deps.Metrics))
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())

	// 请求体大小限制，上传接口按配置放宽
	router.Use(middleware.BodySizeLimit(deps.Config.Storage.MaxUploadSize))

	if deps.Metrics != nil {
		router.Use(middleware.MonitoringMiddleware(deps.Metrics))
	}

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	handler := NewIssueHandler(deps.IssueService, deps.SearchService, deps.ExportService, deps.Logger)

	// Swagger 文档
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// V1 API
	v1 := router.Group("/v1")
	{
		issueRoutes := v1.Group("/issues")
		{
			issueRoutes.POST("", handler.createIssue)   // 创建问题记录
			issueRoutes.GET("", handler.listIssues)     // 搜索问题记录
			issueRoutes.GET("/:id", handler.getIssue)   // 获取问题详情
			issueRoutes.PATCH("/:id", handler.patchIssue) // 修正元数据

			issueRoutes.POST("/:id/solution", handler.submitSolution) // 提交解决方案
			issueRoutes.GET("/:id/export", handler.exportIssue)       // 导出 zip 归档

			issueRoutes.GET("/nt/:ntId", handler.listOpenForReporter) // 报告人的未解决问题
		}
	}

	return router
}
