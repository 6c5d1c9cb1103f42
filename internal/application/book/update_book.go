package book

import (
	"context"
	"io"
	"log"

	"github.com/xiebiao/grimoire/internal/domain/book"
)

// UpdateBookUseCase 更新图书用例
// 设计说明:封面可选更新
// 1. 不传新封面时只更新文字信息,原封面保留
// 2. 传了新封面时先落盘新图,数据库更新成功后再删旧图:
//    顺序保证任何失败点都不会让图书指向不存在的图片
type UpdateBookUseCase struct {
	bookService book.Service
	assetStore  book.AssetStore
}

// NewUpdateBookUseCase 创建更新图书用例
func NewUpdateBookUseCase(bookService book.Service, assetStore book.AssetStore) *UpdateBookUseCase {
	return &UpdateBookUseCase{
		bookService: bookService,
		assetStore:  assetStore,
	}
}

// UpdateBookRequest 更新图书请求DTO
// 文字字段为空值表示不修改
type UpdateBookRequest struct {
	BookID uint
	UserID uint // 操作者用户ID(从JWT中提取,所有权校验用)
	Title  string
	Author string
	Genre  string
	Year   int
	Cover  io.Reader // 新封面,nil表示保留原封面
}

// Execute 执行更新图书
func (uc *UpdateBookUseCase) Execute(ctx context.Context, req UpdateBookRequest) (*BookResponse, error) {
	// 1. 所有权预检:先确认操作者有权修改,再处理图片
	// (避免无权用户的上传白白落盘)
	existing, err := uc.bookService.GetBookByID(ctx, req.BookID)
	if err != nil {
		return nil, err
	}
	if !existing.IsOwnedBy(req.UserID) {
		return nil, book.ErrNotOwner
	}
	oldCoverURL := existing.CoverURL

	// 2. 有新封面时先落盘
	var newCoverURL string
	if req.Cover != nil {
		url, err := uc.assetStore.Store(ctx, req.Cover)
		if err != nil {
			return nil, err
		}
		newCoverURL = url
	}

	// 3. 更新数据库记录(领域服务内部再做一次所有权校验)
	updated, err := uc.bookService.UpdateBook(ctx, req.BookID, req.UserID, req.Title, req.Author, req.Genre, req.Year, newCoverURL)
	if err != nil {
		// 数据库更新失败,回收刚落盘的新图
		if newCoverURL != "" {
			if rmErr := uc.assetStore.Remove(ctx, newCoverURL); rmErr != nil {
				log.Printf("回收新封面失败 [%s]: %v", newCoverURL, rmErr)
			}
		}
		return nil, err
	}

	// 4. 更新成功后释放旧封面
	// 内容寻址文件名:新旧图相同内容时URL一致,此时不能删
	if newCoverURL != "" && oldCoverURL != "" && oldCoverURL != newCoverURL {
		if rmErr := uc.assetStore.Remove(ctx, oldCoverURL); rmErr != nil {
			// 旧图残留可接受,只记日志
			log.Printf("释放旧封面失败 [%s]: %v", oldCoverURL, rmErr)
		}
	}

	return toBookResponse(updated), nil
}
