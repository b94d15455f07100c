package registry

import (
	"fmt"
	"sort"
	"sync"

	"marketplace/internal/pkg/config"
	"marketplace/internal/pkg/worker"
	"marketplace/pkg/cache"
	"marketplace/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ModuleContext 模块初始化所需的上下文
type ModuleContext struct {
	DB      *gorm.DB
	Redis   *redis.Client
	Router  *gin.Engine
	API     *gin.RouterGroup // 已挂载认证中间件的路由组
	Config  *config.Config
	Metrics *metrics.MetricsCollector
	Cache   cache.CacheService
	Worker  *worker.WorkerPool
}

// Module 模块接口
type Module interface {
	// Name 返回模块名称
	Name() string

	// Init 初始化模块（依赖注入、路由注册等）
	Init(ctx *ModuleContext) error

	// Priority 返回初始化优先级（数字越小越先初始化）
	Priority() int
}

var (
	mu             sync.Mutex
	moduleRegistry = make(map[string]Module)
)

// Register 注册模块，重名时 panic
func Register(module Module) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := moduleRegistry[module.Name()]; exists {
		panic(fmt.Sprintf("registry: module %q registered twice", module.Name()))
	}
	moduleRegistry[module.Name()] = module
}

// GetModules 按优先级返回所有已注册的模块，同优先级按名称排序
func GetModules() []Module {
	mu.Lock()
	defer mu.Unlock()

	modules := make([]Module, 0, len(moduleRegistry))
	for _, m := range moduleRegistry {
		modules = append(modules, m)
	}
	sort.Slice(modules, func(i, j int) bool {
		if modules[i].Priority() != modules[j].Priority() {
			return modules[i].Priority() < modules[j].Priority()
		}
		return modules[i].Name() < modules[j].Name()
	})
	return modules
}

// InitModules 按优先级初始化所有模块
func InitModules(ctx *ModuleContext) error {
	for _, module := range GetModules() {
		if err := module.Init(ctx); err != nil {
			return fmt.Errorf("init module %s: %w", module.Name(), err)
		}
	}
	return nil
}
