package book

import (
	"context"
	"log"

	"github.com/xiebiao/grimoire/internal/domain/book"
	"github.com/xiebiao/grimoire/pkg/metrics"
)

// RankingCache 排行榜缓存接口
// 设计说明:用例只依赖接口,Redis实现在infrastructure层,
// 缓存未装配(nil)时用例直接回源数据库
type RankingCache interface {
	// Get 读取缓存,miss时返回(nil, nil)
	Get(ctx context.Context, k int) ([]*book.Book, error)
	// Set 写入缓存
	Set(ctx context.Context, k int, books []*book.Book) error
	// Invalidate 失效所有排行榜缓存
	Invalidate(ctx context.Context) error
}

// TopRatedUseCase 评分排行榜用例
// 教学要点:Cache-Aside模式
// 1. 先查缓存,命中直接返回
// 2. miss时查数据库(对ratings表做实时聚合)
// 3. 回填缓存供后续请求使用
// 4. 缓存任何一步出错都不阻塞请求,回落到数据库
type TopRatedUseCase struct {
	bookService book.Service
	cache       RankingCache
}

// NewTopRatedUseCase 创建排行榜用例
func NewTopRatedUseCase(bookService book.Service, cache RankingCache) *TopRatedUseCase {
	return &TopRatedUseCase{
		bookService: bookService,
		cache:       cache,
	}
}

// TopRatedRequest 排行榜请求DTO
type TopRatedRequest struct {
	K int // 返回前K名,<=0时取默认值
}

// TopRatedResponse 排行榜响应DTO
type TopRatedResponse struct {
	Books []*BookSummary `json:"books"`
}

// Execute 查询平均分最高的前K本书
// 结果按平均分降序;平均分相同按创建先后;没有评分的书不参与,
// 所以结果可能少于K本
func (uc *TopRatedUseCase) Execute(ctx context.Context, req TopRatedRequest) (*TopRatedResponse, error) {
	k := req.K
	if k <= 0 {
		k = book.DefaultTopK
	}
	if k > book.MaxTopK {
		k = book.MaxTopK
	}

	// 1. 查缓存
	if uc.cache != nil {
		cached, err := uc.cache.Get(ctx, k)
		if err != nil {
			// Redis故障降级:记日志后回源数据库
			log.Printf("读取排行榜缓存失败: %v", err)
		} else if cached != nil {
			metrics.IncCounterVec(metrics.RankingCacheHits, map[string]string{"result": "hit"})
			return toTopRatedResponse(cached), nil
		}
		metrics.IncCounterVec(metrics.RankingCacheHits, map[string]string{"result": "miss"})
	}

	// 2. 回源数据库(实时聚合ratings表)
	books, err := uc.bookService.TopRated(ctx, k)
	if err != nil {
		return nil, err
	}

	// 3. 回填缓存
	if uc.cache != nil {
		if err := uc.cache.Set(ctx, k, books); err != nil {
			log.Printf("写入排行榜缓存失败: %v", err)
		}
	}

	return toTopRatedResponse(books), nil
}

func toTopRatedResponse(books []*book.Book) *TopRatedResponse {
	summaries := make([]*BookSummary, len(books))
	for i, b := range books {
		summaries[i] = toBookSummary(b)
	}
	return &TopRatedResponse{Books: summaries}
}
