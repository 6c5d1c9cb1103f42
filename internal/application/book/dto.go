package book

import (
	"github.com/xiebiao/grimoire/internal/domain/book"
)

// =========================================
// 应用层DTO(数据传输对象)
// =========================================

// RatingItem 评分明细项
type RatingItem struct {
	UserID uint `json:"user_id"`
	Grade  int  `json:"grade"`
}

// BookResponse 图书响应(详情视图,含评分账本)
type BookResponse struct {
	ID            uint         `json:"id"`
	Title         string       `json:"title"`
	Author        string       `json:"author"`
	Genre         string       `json:"genre"`
	Year          int          `json:"year"`
	CoverURL      string       `json:"cover_url"`
	OwnerID       uint         `json:"owner_id"`
	Ratings       []RatingItem `json:"ratings"`
	AverageRating float64      `json:"average_rating"`
	RatingCount   int          `json:"rating_count"`
	CreatedAt     string       `json:"created_at"`
}

// BookSummary 图书摘要(列表/排行视图,不含评分明细)
type BookSummary struct {
	ID            uint    `json:"id"`
	Title         string  `json:"title"`
	Author        string  `json:"author"`
	Genre         string  `json:"genre"`
	Year          int     `json:"year"`
	CoverURL      string  `json:"cover_url"`
	AverageRating float64 `json:"average_rating"`
	RatingCount   int     `json:"rating_count"`
}

// toBookResponse 领域实体 → 详情DTO
func toBookResponse(b *book.Book) *BookResponse {
	ratings := make([]RatingItem, len(b.Ratings))
	for i, r := range b.Ratings {
		ratings[i] = RatingItem{
			UserID: r.UserID,
			Grade:  r.Grade,
		}
	}

	return &BookResponse{
		ID:            b.ID,
		Title:         b.Title,
		Author:        b.Author,
		Genre:         b.Genre,
		Year:          b.Year,
		CoverURL:      b.CoverURL,
		OwnerID:       b.OwnerID,
		Ratings:       ratings,
		AverageRating: b.AverageRating,
		RatingCount:   b.RatingCount,
		CreatedAt:     b.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

// toBookSummary 领域实体 → 摘要DTO
func toBookSummary(b *book.Book) *BookSummary {
	return &BookSummary{
		ID:            b.ID,
		Title:         b.Title,
		Author:        b.Author,
		Genre:         b.Genre,
		Year:          b.Year,
		CoverURL:      b.CoverURL,
		AverageRating: b.AverageRating,
		RatingCount:   b.RatingCount,
	}
}
