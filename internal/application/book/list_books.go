package book

import (
	"context"

	"github.com/xiebiao/grimoire/internal/domain/book"
)

// 分页参数边界
const (
	defaultPage     = 1
	defaultPageSize = 10
	maxPageSize     = 100
)

// ListBooksUseCase 图书列表用例
type ListBooksUseCase struct {
	bookService book.Service
}

// NewListBooksUseCase 创建图书列表用例
func NewListBooksUseCase(bookService book.Service) *ListBooksUseCase {
	return &ListBooksUseCase{bookService: bookService}
}

// ListBooksRequest 列表请求DTO
type ListBooksRequest struct {
	Page     int    // 页码(从1开始)
	PageSize int    // 每页数量
	Keyword  string // 搜索关键词(标题/作者/分类)
	SortBy   string // 排序(year_asc/year_desc/created_at_desc)
}

// ListBooksResponse 列表响应DTO
type ListBooksResponse struct {
	Books []*BookSummary `json:"books"`
	Total int64          `json:"total"`
}

// Execute 分页查询图书列表
func (uc *ListBooksUseCase) Execute(ctx context.Context, req ListBooksRequest) (*ListBooksResponse, error) {
	// 参数归一化
	if req.Page <= 0 {
		req.Page = defaultPage
	}
	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}

	books, total, err := uc.bookService.ListBooks(ctx, book.ListParams{
		Page:     req.Page,
		PageSize: req.PageSize,
		Keyword:  req.Keyword,
		SortBy:   req.SortBy,
	})
	if err != nil {
		return nil, err
	}

	summaries := make([]*BookSummary, len(books))
	for i, b := range books {
		summaries[i] = toBookSummary(b)
	}

	return &ListBooksResponse{
		Books: summaries,
		Total: total,
	}, nil
}
