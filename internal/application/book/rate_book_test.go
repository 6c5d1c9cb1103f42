package book

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/xiebiao/grimoire/internal/domain/book"
	"github.com/xiebiao/grimoire/pkg/metrics"
)

// seedBook 准备一本测试图书
func seedBook(t *testing.T, repo *memRepository) *book.Book {
	t.Helper()
	b := book.NewBook("测试图书", "作者", "分类", 2020, "/images/cover.jpg", 1)
	if err := repo.Create(context.Background(), b); err != nil {
		t.Fatalf("准备测试图书失败: %v", err)
	}
	return b
}

func newRateBookFixture(t *testing.T) (*RateBookUseCase, *memRepository, *fakeRankingCache, *fakePublisher) {
	t.Helper()
	metrics.InitMetrics()
	repo := newMemRepository()
	cache := newFakeRankingCache()
	publisher := &fakePublisher{}
	uc := NewRateBookUseCase(repo, &memTxManager{}, cache, publisher)
	return uc, repo, cache, publisher
}

// TestRateBook_Success 测试正常评分
func TestRateBook_Success(t *testing.T) {
	uc, repo, cache, publisher := newRateBookFixture(t)
	b := seedBook(t, repo)

	resp, err := uc.Execute(context.Background(), RateBookRequest{
		BookID: b.ID,
		UserID: 100,
		Grade:  4,
	})
	if err != nil {
		t.Fatalf("评分失败: %v", err)
	}

	if resp.AverageRating != 4 || resp.RatingCount != 1 {
		t.Errorf("期望平均分4/评分数1,实际%f/%d", resp.AverageRating, resp.RatingCount)
	}

	// 持久化状态与响应一致
	stored, _ := repo.FindByID(context.Background(), b.ID)
	if stored.AverageRating != 4 || stored.RatingCount != 1 {
		t.Errorf("持久化的聚合字段不一致: %f/%d", stored.AverageRating, stored.RatingCount)
	}

	// 评分成功后排行榜缓存失效
	if cache.invalidateCount() != 1 {
		t.Errorf("期望缓存失效1次,实际%d次", cache.invalidateCount())
	}

	// 发布了评分事件
	events := publisher.published()
	if len(events) != 1 || events[0] != EventBookRated {
		t.Errorf("期望发布%s事件,实际: %v", EventBookRated, events)
	}
}

// TestRateBook_GradeZero 测试0分评分
// 0是合法评分,参与平均分计算
func TestRateBook_GradeZero(t *testing.T) {
	uc, repo, _, _ := newRateBookFixture(t)
	b := seedBook(t, repo)

	resp, err := uc.Execute(context.Background(), RateBookRequest{BookID: b.ID, UserID: 100, Grade: 0})
	if err != nil {
		t.Fatalf("0分应该被接受: %v", err)
	}
	if resp.AverageRating != 0 || resp.RatingCount != 1 {
		t.Errorf("期望平均分0/评分数1,实际%f/%d", resp.AverageRating, resp.RatingCount)
	}
}

// TestRateBook_InvalidGrade 测试超范围评分
func TestRateBook_InvalidGrade(t *testing.T) {
	uc, repo, cache, _ := newRateBookFixture(t)
	b := seedBook(t, repo)

	for _, grade := range []int{-1, 6} {
		_, err := uc.Execute(context.Background(), RateBookRequest{BookID: b.ID, UserID: 100, Grade: grade})
		if !errors.Is(err, book.ErrInvalidGrade) {
			t.Errorf("评分%d期望ErrInvalidGrade,实际: %v", grade, err)
		}
	}

	// 被拒绝的评分不进入账本,缓存也不应失效
	stored, _ := repo.FindByID(context.Background(), b.ID)
	if len(stored.Ratings) != 0 {
		t.Errorf("非法评分不应进入账本,实际%d条", len(stored.Ratings))
	}
	if cache.invalidateCount() != 0 {
		t.Errorf("评分失败不应失效缓存,实际%d次", cache.invalidateCount())
	}
}

// TestRateBook_Duplicate 测试重复评分
func TestRateBook_Duplicate(t *testing.T) {
	uc, repo, _, _ := newRateBookFixture(t)
	b := seedBook(t, repo)
	ctx := context.Background()

	if _, err := uc.Execute(ctx, RateBookRequest{BookID: b.ID, UserID: 100, Grade: 5}); err != nil {
		t.Fatalf("首次评分失败: %v", err)
	}

	// 同一用户第二次评分:不合并、不覆盖,拒绝
	_, err := uc.Execute(ctx, RateBookRequest{BookID: b.ID, UserID: 100, Grade: 1})
	if !errors.Is(err, book.ErrAlreadyRated) {
		t.Errorf("期望ErrAlreadyRated,实际: %v", err)
	}

	// 首次评分的状态保持不变
	stored, _ := repo.FindByID(ctx, b.ID)
	if stored.RatingCount != 1 || stored.AverageRating != 5 {
		t.Errorf("重复评分后状态应不变,实际%d条/平均%f", stored.RatingCount, stored.AverageRating)
	}

	// 其他用户仍然可以评分
	if _, err := uc.Execute(ctx, RateBookRequest{BookID: b.ID, UserID: 200, Grade: 3}); err != nil {
		t.Errorf("其他用户评分失败: %v", err)
	}
}

// TestRateBook_BookNotFound 测试给不存在的图书评分
func TestRateBook_BookNotFound(t *testing.T) {
	uc, _, _, _ := newRateBookFixture(t)

	_, err := uc.Execute(context.Background(), RateBookRequest{BookID: 99999, UserID: 100, Grade: 3})
	if !errors.Is(err, book.ErrBookNotFound) {
		t.Errorf("期望ErrBookNotFound,实际: %v", err)
	}
}

// TestRateBook_Concurrent 测试并发评分不丢失
// 核心场景:N个用户同时给同一本书评分,
// 行锁串行化后账本恰好N条,平均分等于全量重算的结果
func TestRateBook_Concurrent(t *testing.T) {
	uc, repo, _, _ := newRateBookFixture(t)
	b := seedBook(t, repo)
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	errCh := make(chan error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(userID uint, grade int) {
			defer wg.Done()
			_, err := uc.Execute(ctx, RateBookRequest{BookID: b.ID, UserID: userID, Grade: grade})
			errCh <- err
		}(uint(100+i), i%6) // 评分在0-5间轮转
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			t.Errorf("并发评分失败: %v", err)
		}
	}

	// 验证:每条评分都进入账本
	stored, _ := repo.FindByID(ctx, b.ID)
	if len(stored.Ratings) != n {
		t.Fatalf("期望账本%d条,实际%d条(并发丢失!)", n, len(stored.Ratings))
	}
	if stored.RatingCount != n {
		t.Errorf("期望评分数%d,实际%d", n, stored.RatingCount)
	}

	// 验证不变式:平均分 == 账本全量重算
	var sum int
	for _, r := range stored.Ratings {
		sum += r.Grade
	}
	expected := float64(sum) / float64(n)
	if math.Abs(stored.AverageRating-expected) > 1e-9 {
		t.Errorf("平均分不变式被破坏: expected=%f, got=%f", expected, stored.AverageRating)
	}
}

// TestRateBook_ConcurrentDuplicate 测试同一用户并发重复评分
// 预期:恰好一个请求成功,其余全部被拒绝
func TestRateBook_ConcurrentDuplicate(t *testing.T) {
	uc, repo, _, _ := newRateBookFixture(t)
	b := seedBook(t, repo)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	errCh := make(chan error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(grade int) {
			defer wg.Done()
			_, err := uc.Execute(ctx, RateBookRequest{BookID: b.ID, UserID: 100, Grade: grade})
			errCh <- err
		}(i % 6)
	}
	wg.Wait()
	close(errCh)

	success, rejected := 0, 0
	for err := range errCh {
		switch {
		case err == nil:
			success++
		case errors.Is(err, book.ErrAlreadyRated):
			rejected++
		default:
			t.Errorf("意外错误: %v", err)
		}
	}

	if success != 1 {
		t.Errorf("期望恰好1个请求成功,实际%d个", success)
	}
	if rejected != n-1 {
		t.Errorf("期望%d个请求被拒绝,实际%d个", n-1, rejected)
	}

	stored, _ := repo.FindByID(ctx, b.ID)
	if len(stored.Ratings) != 1 {
		t.Errorf("账本应恰好1条,实际%d条", len(stored.Ratings))
	}
}

// TestRateBook_NilCache 测试缓存未装配时评分正常工作
func TestRateBook_NilCache(t *testing.T) {
	metrics.InitMetrics()
	repo := newMemRepository()
	uc := NewRateBookUseCase(repo, &memTxManager{}, nil, nil)
	b := seedBook(t, repo)

	if _, err := uc.Execute(context.Background(), RateBookRequest{BookID: b.ID, UserID: 100, Grade: 3}); err != nil {
		t.Fatalf("缓存/发布器未装配时评分应照常工作: %v", err)
	}
}
