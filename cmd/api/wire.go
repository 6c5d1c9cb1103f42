//go:build wireinject
// +build wireinject

// Wire依赖注入配置文件
//
// 教学说明：
// 1. Wire是Google开发的编译期依赖注入工具
// 2. 与运行时反射注入（如Spring的@Autowired）不同，Wire在编译期生成代码
// 3. 优势：零运行时开销、类型安全、编译期检测循环依赖
//
// Wire工作流程：
// Step 1: 编写wire.go（本文件），定义Providers和Injector
// Step 2: 运行 `wire gen ./cmd/api`
// Step 3: Wire生成wire_gen.go，包含完整的依赖创建代码
// Step 4: main.go调用wire_gen.go中的InitializeApp()
//
// 核心概念：
// - Provider: 提供依赖的构造函数（如NewUserRepository）
// - Injector: 声明最终要构造的目标类型（如*gin.Engine）
// - wire.Build(): 告诉Wire如何组装依赖链

package main

import (
	"github.com/gin-gonic/gin"
	"github.com/google/wire"
	goredis "github.com/redis/go-redis/v9"

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
)

// ========================================
// Wire Provider Sets (依赖分组)
// ========================================

// infrastructureSet 基础设施层依赖
// 包含：配置加载、数据库连接、Redis连接、图片存储、事件发布器
var infrastructureSet = wire.NewSet(
	config.Load,               // 加载配置文件
	mysql.NewDB,               // 创建MySQL连接
	redis.NewClient,           // 创建Redis连接
	storage.NewLocalAssetStore, // 封面图片存储
	eventbus.NewPublisher,     // 领域事件发布器(带熔断)
	// 接口绑定：用例依赖接口，Wire需要知道用哪个具体实现
	wire.Bind(new(book.AssetStore), new(*storage.LocalAssetStore)),
)

// repositorySet 仓储层依赖
var repositorySet = wire.NewSet(
	mysql.NewUserRepository, // 用户仓储
	mysql.NewBookRepository, // 图书仓储
	mysql.NewTxManager,      // 事务管理器
	wire.Bind(new(appbook.TxManager), new(*mysql.TxManager)),
)

// domainSet 领域层依赖
var domainSet = wire.NewSet(
	user.NewService, // 用户领域服务
	book.NewService, // 图书领域服务
)

// applicationSet 应用层依赖
var applicationSet = wire.NewSet(
	appuser.NewRegisterUseCase,   // 用户注册用例
	appuser.NewLoginUseCase,      // 用户登录用例
	appuser.NewLogoutUseCase,     // 用户登出用例
	appbook.NewCreateBookUseCase, // 创建图书用例
	appbook.NewGetBookUseCase,    // 图书详情用例
	appbook.NewUpdateBookUseCase, // 更新图书用例
	appbook.NewDeleteBookUseCase, // 删除图书用例
	appbook.NewListBooksUseCase,  // 图书列表用例
	appbook.NewRateBookUseCase,   // 提交评分用例(核心)
	appbook.NewTopRatedUseCase,   // 评分排行榜用例
)

// middlewareSet 中间件依赖
var middlewareSet = wire.NewSet(
	provideJWTManager,            // JWT管理器（需要从config提取参数）
	provideSessionStore,          // Session存储
	provideRankingCache,          // 排行榜缓存
	middleware.NewAuthMiddleware, // 认证中间件
)

// handlerSet HTTP处理器依赖
var handlerSet = wire.NewSet(
	handler.NewUserHandler, // 用户处理器
	handler.NewBookHandler, // 图书处理器
)

// ========================================
// Custom Providers (自定义Provider)
// ========================================

// provideJWTManager 从配置创建JWT管理器
// 教学要点：config.Config包含多个字段，但jwt.NewManager只需要JWT相关的配置
// Wire无法自动知道如何从Config提取参数，所以需要手动编写Provider
func provideJWTManager(cfg *config.Config) *jwt.Manager {
	return jwt.NewManager(
		cfg.JWT.Secret,
		cfg.JWT.AccessTokenExpire,
		cfg.JWT.RefreshTokenExpire,
	)
}

// provideSessionStore 从Redis客户端创建Session存储
func provideSessionStore(client *goredis.Client) *redis.SessionStore {
	return redis.NewSessionStore(client)
}

// provideRankingCache 从Redis客户端创建排行榜缓存
// 返回application层的接口类型，用例直接依赖它
func provideRankingCache(client *goredis.Client) appbook.RankingCache {
	return redis.NewRankingCache(client)
}

// provideGinEngine 创建并配置Gin引擎
// 教学要点：路由注册需要所有的Handler和Middleware，Wire会自动注入
func provideGinEngine(
	cfg *config.Config,
	userHandler *handler.UserHandler,
	bookHandler *handler.BookHandler,
	authMiddleware *middleware.AuthMiddleware,
	assetStore *storage.LocalAssetStore,
) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.Metrics())

	registerRoutes(r, cfg, userHandler, bookHandler, authMiddleware, assetStore.Dir())

	return r
}

// ========================================
// Wire Injector (依赖注入器)
// ========================================

// InitializeApp 初始化整个应用
// 返回：配置好的Gin引擎、资源清理函数
//
// 依赖链示例：
// *gin.Engine 需要 → *handler.BookHandler
// *handler.BookHandler 需要 → *appbook.RateBookUseCase
// *appbook.RateBookUseCase 需要 → book.Repository + appbook.TxManager
// book.Repository 需要 → *gorm.DB
// *gorm.DB 需要 → *config.Config
func InitializeApp() (*gin.Engine, func(), error) {
	wire.Build(
		infrastructureSet,
		repositorySet,
		domainSet,
		applicationSet,
		middlewareSet,
		handlerSet,
		provideGinEngine,
	)

	// 返回值是占位符，实际代码由Wire生成在wire_gen.go中
	return nil, nil, nil
}
