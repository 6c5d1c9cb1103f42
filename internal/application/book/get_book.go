package book

import (
	"context"

	"github.com/xiebiao/grimoire/internal/domain/book"
)

// GetBookUseCase 图书详情用例
type GetBookUseCase struct {
	bookService book.Service
}

// NewGetBookUseCase 创建图书详情用例
func NewGetBookUseCase(bookService book.Service) *GetBookUseCase {
	return &GetBookUseCase{bookService: bookService}
}

// Execute 查询图书详情(含评分账本)
func (uc *GetBookUseCase) Execute(ctx context.Context, bookID uint) (*BookResponse, error) {
	b, err := uc.bookService.GetBookByID(ctx, bookID)
	if err != nil {
		return nil, err
	}
	return toBookResponse(b), nil
}
