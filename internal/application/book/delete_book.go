package book

import (
	"context"
	"log"
	"time"

	"github.com/xiebiao/grimoire/internal/domain/book"
)

// DeleteBookUseCase 删除图书用例
type DeleteBookUseCase struct {
	bookService book.Service
	assetStore  book.AssetStore
	cache       RankingCache
	publisher   EventPublisher
}

// NewDeleteBookUseCase 创建删除图书用例
func NewDeleteBookUseCase(
	bookService book.Service,
	assetStore book.AssetStore,
	cache RankingCache,
	publisher EventPublisher,
) *DeleteBookUseCase {
	return &DeleteBookUseCase{
		bookService: bookService,
		assetStore:  assetStore,
		cache:       cache,
		publisher:   publisher,
	}
}

// Execute 执行删除图书
// 流程:数据库软删除(含所有权校验) → 释放封面图片 → 失效排行榜缓存
// 删除成功后的清理动作都是尽力而为,失败只记日志
func (uc *DeleteBookUseCase) Execute(ctx context.Context, bookID, userID uint) error {
	// 1. 删除记录(领域服务做所有权校验,返回被删图书)
	deleted, err := uc.bookService.DeleteBook(ctx, bookID, userID)
	if err != nil {
		return err
	}

	// 2. 释放封面图片
	// 内容寻址文件可能被其他图书共享,这里直接删除:
	// 共享封面的场景极少,且封面缺失可由占位图兜底
	if deleted.CoverURL != "" {
		if rmErr := uc.assetStore.Remove(ctx, deleted.CoverURL); rmErr != nil {
			log.Printf("释放封面图片失败 [%s]: %v", deleted.CoverURL, rmErr)
		}
	}

	// 3. 失效排行榜缓存(被删的书可能在榜上)
	if uc.cache != nil {
		if cacheErr := uc.cache.Invalidate(ctx); cacheErr != nil {
			log.Printf("失效排行榜缓存失败: %v", cacheErr)
		}
	}

	// 4. 发布删除事件
	publishEvent(uc.publisher, EventBookDeleted, BookDeletedEvent{
		BookID:    deleted.ID,
		OwnerID:   deleted.OwnerID,
		DeletedAt: time.Now(),
	})

	return nil
}
