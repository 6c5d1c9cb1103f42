package book

import (
	"context"
	"io"
	"time"

	"github.com/xiebiao/grimoire/internal/domain/book"
	"github.com/xiebiao/grimoire/pkg/saga"
)

// CreateBookUseCase 创建图书用例
// 教学要点:跨资源的两步写入(图片落盘+数据库记录)没有共同事务,
// 用Saga模式保证最终一致:数据库写入失败时补偿删除已落盘的图片,
// 不会留下没有归属的孤儿文件
type CreateBookUseCase struct {
	bookService book.Service
	assetStore  book.AssetStore
	publisher   EventPublisher
}

// NewCreateBookUseCase 创建图书用例
func NewCreateBookUseCase(
	bookService book.Service,
	assetStore book.AssetStore,
	publisher EventPublisher,
) *CreateBookUseCase {
	return &CreateBookUseCase{
		bookService: bookService,
		assetStore:  assetStore,
		publisher:   publisher,
	}
}

// CreateBookRequest 创建图书请求DTO
type CreateBookRequest struct {
	Title   string    // 书名(必填)
	Author  string    // 作者(必填)
	Genre   string    // 分类(必填)
	Year    int       // 出版年份(必填)
	OwnerID uint      // 创建者用户ID(从JWT中提取)
	Cover   io.Reader // 封面图片(必填,原始字节流)
}

// Execute 执行创建图书
// 流程:
// 1. 封面图片归一化处理并落盘(Saga步骤1,补偿:删除文件)
// 2. 创建图书记录,评分账本为空(Saga步骤2)
// 3. 发布图书创建事件
func (uc *CreateBookUseCase) Execute(ctx context.Context, req CreateBookRequest) (*BookResponse, error) {
	var coverURL string
	var created *book.Book

	s := saga.NewSaga(30 * time.Second)

	// 步骤1:存储封面图片
	s.AddStep("store_cover",
		func(ctx context.Context) error {
			url, err := uc.assetStore.Store(ctx, req.Cover)
			if err != nil {
				return err
			}
			coverURL = url
			return nil
		},
		func(ctx context.Context) error {
			// 补偿:删除已落盘的图片(Remove幂等,重复补偿安全)
			return uc.assetStore.Remove(ctx, coverURL)
		},
	)

	// 步骤2:创建图书记录
	s.AddStep("create_book",
		func(ctx context.Context) error {
			b, err := uc.bookService.CreateBook(ctx, req.Title, req.Author, req.Genre, req.Year, coverURL, req.OwnerID)
			if err != nil {
				return err
			}
			created = b
			return nil
		},
		func(ctx context.Context) error {
			// 最后一步失败时自身无需补偿
			return nil
		},
	)

	if err := s.Execute(ctx); err != nil {
		return nil, err
	}

	// 发布图书创建事件
	publishEvent(uc.publisher, EventBookCreated, BookCreatedEvent{
		BookID:    created.ID,
		Title:     created.Title,
		OwnerID:   created.OwnerID,
		CreatedAt: created.CreatedAt,
	})

	return toBookResponse(created), nil
}
