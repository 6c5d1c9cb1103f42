package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xiebiao/grimoire/internal/domain/book"
	apperrors "github.com/xiebiao/grimoire/pkg/errors"
)

// 排行榜缓存TTL
// 评分提交时缓存会被主动失效,TTL只是兜底(失效指令丢失时的最长脏读窗口)
const rankingTTL = 5 * time.Minute

// RankingCache 评分排行榜缓存(Cache-Aside模式)
// 设计说明:
// 1. 排行榜读多写少,且聚合查询(AVG+GROUP BY)相对昂贵,适合缓存
// 2. Key按k分桶:ranking:top:{k},不同k的请求互不干扰
// 3. 任意一本书的评分发生变化都可能改变排名,所以失效操作清掉所有分桶
// 4. 缓存miss或Redis故障都不阻塞请求,回落到数据库查询
type RankingCache struct {
	client *redis.Client
}

// NewRankingCache 创建排行榜缓存
func NewRankingCache(client *redis.Client) *RankingCache {
	return &RankingCache{client: client}
}

// rankedBook 缓存中的排行条目(只存展示需要的字段)
type rankedBook struct {
	ID            uint    `json:"id"`
	Title         string  `json:"title"`
	Author        string  `json:"author"`
	Genre         string  `json:"genre"`
	Year          int     `json:"year"`
	CoverURL      string  `json:"cover_url"`
	AverageRating float64 `json:"average_rating"`
	RatingCount   int     `json:"rating_count"`
}

// Get 读取排行榜缓存
// 缓存不存在时返回(nil, nil),由调用方回源数据库
func (c *RankingCache) Get(ctx context.Context, k int) ([]*book.Book, error) {
	key := fmt.Sprintf("ranking:top:%d", k)

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil // 缓存miss
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "读取排行榜缓存失败")
	}

	var entries []rankedBook
	if err := json.Unmarshal(data, &entries); err != nil {
		// 缓存数据损坏,当作miss处理,回源后会被覆盖
		return nil, nil
	}

	books := make([]*book.Book, len(entries))
	for i, e := range entries {
		books[i] = &book.Book{
			ID:            e.ID,
			Title:         e.Title,
			Author:        e.Author,
			Genre:         e.Genre,
			Year:          e.Year,
			CoverURL:      e.CoverURL,
			AverageRating: e.AverageRating,
			RatingCount:   e.RatingCount,
		}
	}
	return books, nil
}

// Set 写入排行榜缓存
func (c *RankingCache) Set(ctx context.Context, k int, books []*book.Book) error {
	key := fmt.Sprintf("ranking:top:%d", k)

	entries := make([]rankedBook, len(books))
	for i, b := range books {
		entries[i] = rankedBook{
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

	data, err := json.Marshal(entries)
	if err != nil {
		return apperrors.Wrap(err, "序列化排行榜失败")
	}

	if err := c.client.Set(ctx, key, data, rankingTTL).Err(); err != nil {
		return apperrors.Wrap(err, "写入排行榜缓存失败")
	}
	return nil
}

// Invalidate 失效所有排行榜缓存
// 评分提交成功、图书删除后调用
func (c *RankingCache) Invalidate(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, "ranking:top:*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return apperrors.Wrap(err, "删除排行榜缓存失败")
		}
	}
	if err := iter.Err(); err != nil {
		return apperrors.Wrap(err, "遍历排行榜缓存失败")
	}
	return nil
}
