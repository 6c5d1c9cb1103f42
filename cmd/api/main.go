package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	appbook "github.com/xiebiao/grimoire/internal/application/book"
	appuser "github.com/xiebiao/grimoire/internal/application/user"
	"github.com/xiebiao/grimoire/internal/domain/book"
	"github.com/xiebiao/grimoire/internal/domain/user"
	"github.com/xiebiao/grimoire/internal/infrastructure/config"
	"github.com/xiebiao/grimoire/internal/infrastructure/eventbus"
	"github.com/xiebiao/grimoire/internal/infrastructure/persistence/mysql"
	"github.com/xiebiao/grimoire/internal/infrastructure/persistence/redis"
	"github.com/xiebiao/grimoire/internal/infrastructure/storage"
	"github.com/xiebiao/grimoire/internal/interface/http/handler"
	"github.com/xiebiao/grimoire/internal/interface/http/middleware"
	"github.com/xiebiao/grimoire/pkg/jwt"
	"github.com/xiebiao/grimoire/pkg/metrics"
	"github.com/xiebiao/grimoire/pkg/response"
	"github.com/xiebiao/grimoire/pkg/tracing"
)

// main 主程序入口
// 说明：手动依赖注入（wire.go中有等价的Wire注入配置）
func main() {
	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	fmt.Printf("✓ 配置加载成功\n")
	fmt.Printf("  - 服务端口: %d\n", cfg.Server.Port)
	fmt.Printf("  - 运行模式: %s\n", cfg.Server.Mode)
	fmt.Printf("  - 数据库: %s:%d/%s\n", cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName)
	fmt.Printf("  - Redis: %s\n", cfg.Redis.Addr())
	fmt.Printf("  - 评分需登录: %t\n", cfg.Rating.RequireAuth)

	// 2. 初始化可观测性组件
	metrics.InitMetrics()

	if cfg.Tracing.Enabled {
		shutdown, err := tracing.InitTracer("grimoire-api", cfg.Tracing.Endpoint)
		if err != nil {
			log.Fatalf("初始化追踪失败: %v", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.Printf("关闭追踪失败: %v", err)
			}
		}()
	}

	// 3. 初始化数据库连接
	db, err := mysql.NewDB(cfg)
	if err != nil {
		log.Fatalf("初始化数据库失败: %v", err)
	}

	// 4. 初始化Redis连接
	redisClient, err := redis.NewClient(cfg)
	if err != nil {
		log.Fatalf("初始化Redis失败: %v", err)
	}

	// 5. 初始化封面图片存储
	assetStore, err := storage.NewLocalAssetStore(cfg)
	if err != nil {
		log.Fatalf("初始化图片存储失败: %v", err)
	}

	// 6. 初始化领域事件发布器(MQ未启用时为Noop)
	publisher, closePublisher, err := eventbus.NewPublisher(cfg)
	if err != nil {
		log.Fatalf("初始化事件发布器失败: %v", err)
	}
	defer closePublisher()

	// 7. 依赖注入（手动组装）
	// 依赖链：Repository ← Service ← UseCase ← Handler

	// 基础设施层
	userRepo := mysql.NewUserRepository(db)
	bookRepo := mysql.NewBookRepository(db)
	txManager := mysql.NewTxManager(db)
	sessionStore := redis.NewSessionStore(redisClient)
	rankingCache := redis.NewRankingCache(redisClient)
	jwtManager := jwt.NewManager(
		cfg.JWT.Secret,
		cfg.JWT.AccessTokenExpire,
		cfg.JWT.RefreshTokenExpire,
	)

	// 领域层
	userService := user.NewService(userRepo)
	bookService := book.NewService(bookRepo)

	// 应用层
	registerUseCase := appuser.NewRegisterUseCase(userService)
	loginUseCase := appuser.NewLoginUseCase(userService, jwtManager, sessionStore)
	logoutUseCase := appuser.NewLogoutUseCase(sessionStore)
	createBookUseCase := appbook.NewCreateBookUseCase(bookService, assetStore, publisher)
	getBookUseCase := appbook.NewGetBookUseCase(bookService)
	updateBookUseCase := appbook.NewUpdateBookUseCase(bookService, assetStore)
	deleteBookUseCase := appbook.NewDeleteBookUseCase(bookService, assetStore, rankingCache, publisher)
	listBooksUseCase := appbook.NewListBooksUseCase(bookService)
	rateBookUseCase := appbook.NewRateBookUseCase(bookRepo, txManager, rankingCache, publisher)
	topRatedUseCase := appbook.NewTopRatedUseCase(bookService, rankingCache)

	// 接口层
	userHandler := handler.NewUserHandler(registerUseCase, loginUseCase, logoutUseCase)
	bookHandler := handler.NewBookHandler(
		createBookUseCase,
		getBookUseCase,
		updateBookUseCase,
		deleteBookUseCase,
		listBooksUseCase,
		rateBookUseCase,
		topRatedUseCase,
	)
	authMiddleware := middleware.NewAuthMiddleware(jwtManager, sessionStore)

	// 8. 初始化Gin引擎
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	r.Use(middleware.Metrics())

	// 9. 注册路由
	registerRoutes(r, cfg, userHandler, bookHandler, authMiddleware, assetStore.Dir())

	// 10. 启动服务
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	fmt.Printf("\n🚀 服务启动成功！\n")
	fmt.Printf("   访问地址: http://localhost%s\n", addr)
	fmt.Printf("   健康检查: http://localhost%s/ping\n", addr)
	fmt.Printf("   API文档:  http://localhost%s/swagger/index.html\n", addr)
	fmt.Printf("   评分排行: GET http://localhost%s/api/v1/books/best-rating\n", addr)
	fmt.Printf("\n按Ctrl+C停止服务\n\n")

	if err := r.Run(addr); err != nil {
		log.Fatalf("启动服务失败: %v", err)
	}
}

// registerRoutes 注册路由
func registerRoutes(
	r *gin.Engine,
	cfg *config.Config,
	userHandler *handler.UserHandler,
	bookHandler *handler.BookHandler,
	authMiddleware *middleware.AuthMiddleware,
	imageDir string,
) {
	// 健康检查
	r.GET("/ping", func(c *gin.Context) {
		response.Success(c, gin.H{
			"message": "pong",
			"status":  "healthy",
		})
	})

	// Prometheus指标
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Swagger文档（生产环境建议禁用或加访问控制）
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 封面图片静态文件服务
	r.Static(cfg.Asset.BaseURL, imageDir)

	// API路由组
	v1 := r.Group("/api/v1")
	{
		// 用户模块
		users := v1.Group("/users")
		{
			users.POST("/register", userHandler.Register)
			users.POST("/login", userHandler.Login)
			users.POST("/logout", authMiddleware.RequireAuth(), userHandler.Logout)
		}

		// 图书模块
		books := v1.Group("/books")
		{
			// 公开接口（不需要登录）
			books.GET("", bookHandler.ListBooks)
			books.GET("/best-rating", bookHandler.TopRated)
			books.GET("/:id", bookHandler.GetBook)

			// 需要登录
			books.POST("", authMiddleware.RequireAuth(), bookHandler.CreateBook)
			books.PUT("/:id", authMiddleware.RequireAuth(), bookHandler.UpdateBook)
			books.DELETE("/:id", authMiddleware.RequireAuth(), bookHandler.DeleteBook)

			// 提交评分:认证策略由配置决定
			// rating.require_auth=true时必须登录,false时允许匿名(请求体携带user_id)
			if cfg.Rating.RequireAuth {
				books.POST("/:id/rating", authMiddleware.RequireAuth(), bookHandler.RateBook)
			} else {
				books.POST("/:id/rating", authMiddleware.OptionalAuth(), bookHandler.RateBook)
			}
		}
	}
}
