package book

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/xiebiao/grimoire/internal/domain/book"
)

// =========================================
// 测试替身:内存仓储、事务管理器、缓存、图片存储、事件发布
// 用例只依赖接口,单元测试用内存实现替换基础设施
// =========================================

// memRepository 内存图书仓储
type memRepository struct {
	mu     sync.Mutex
	books  map[uint]*book.Book
	nextID uint
}

func newMemRepository() *memRepository {
	return &memRepository{
		books:  make(map[uint]*book.Book),
		nextID: 1,
	}
}

func (r *memRepository) clone(b *book.Book) *book.Book {
	cp := *b
	cp.Ratings = append([]book.Rating{}, b.Ratings...)
	return &cp
}

func (r *memRepository) Create(ctx context.Context, b *book.Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b.ID = r.nextID
	r.nextID++
	r.books[b.ID] = r.clone(b)
	return nil
}

func (r *memRepository) FindByID(ctx context.Context, id uint) (*book.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.books[id]
	if !ok {
		return nil, book.ErrBookNotFound
	}
	return r.clone(b), nil
}

func (r *memRepository) Update(ctx context.Context, b *book.Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.books[b.ID]
	if !ok {
		return book.ErrBookNotFound
	}
	// 只更新基本信息,不触碰评分账本
	stored.Title = b.Title
	stored.Author = b.Author
	stored.Genre = b.Genre
	stored.Year = b.Year
	stored.CoverURL = b.CoverURL
	return nil
}

func (r *memRepository) Delete(ctx context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.books[id]; !ok {
		return book.ErrBookNotFound
	}
	delete(r.books, id)
	return nil
}

func (r *memRepository) List(ctx context.Context, params book.ListParams) ([]*book.Book, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]*book.Book, 0, len(r.books))
	for _, b := range r.books {
		all = append(all, r.clone(b))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	total := int64(len(all))
	// 简化的分页
	start := (params.Page - 1) * params.PageSize
	if start >= len(all) {
		return []*book.Book{}, total, nil
	}
	end := start + params.PageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (r *memRepository) LockByID(ctx context.Context, id uint) (*book.Book, error) {
	// 行锁由memTxManager的互斥锁模拟(事务串行执行)
	return r.FindByID(ctx, id)
}

func (r *memRepository) AddRating(ctx context.Context, bookID, userID uint, grade int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.books[bookID]
	if !ok {
		return book.ErrBookNotFound
	}
	// 模拟(book_id, user_id)联合唯一索引
	for _, rt := range b.Ratings {
		if rt.UserID == userID {
			return book.ErrAlreadyRated
		}
	}
	b.Ratings = append(b.Ratings, book.Rating{UserID: userID, Grade: grade})
	return nil
}

func (r *memRepository) ListRatings(ctx context.Context, bookID uint) ([]book.Rating, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.books[bookID]
	if !ok {
		return nil, book.ErrBookNotFound
	}
	return append([]book.Rating{}, b.Ratings...), nil
}

func (r *memRepository) UpdateAggregate(ctx context.Context, bookID uint, average float64, count int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.books[bookID]
	if !ok {
		return book.ErrBookNotFound
	}
	b.AverageRating = average
	b.RatingCount = count
	return nil
}

func (r *memRepository) TopRated(ctx context.Context, k int) ([]*book.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ranked := make([]*book.Book, 0)
	for _, b := range r.books {
		if len(b.Ratings) == 0 {
			continue
		}
		var sum int
		for _, rt := range b.Ratings {
			sum += rt.Grade
		}
		cp := r.clone(b)
		cp.AverageRating = float64(sum) / float64(len(b.Ratings))
		cp.RatingCount = len(b.Ratings)
		ranked = append(ranked, cp)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].AverageRating != ranked[j].AverageRating {
			return ranked[i].AverageRating > ranked[j].AverageRating
		}
		return ranked[i].ID < ranked[j].ID
	})
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked, nil
}

// memTxManager 内存事务管理器
// 互斥锁模拟数据库行锁:事务串行执行,与SELECT FOR UPDATE等效
type memTxManager struct {
	mu sync.Mutex
}

func (m *memTxManager) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx)
}

// fakeRankingCache 内存排行榜缓存
type fakeRankingCache struct {
	mu          sync.Mutex
	entries     map[int][]*book.Book
	getErr      error
	invalidated int // Invalidate调用次数
}

func newFakeRankingCache() *fakeRankingCache {
	return &fakeRankingCache{entries: make(map[int][]*book.Book)}
}

func (c *fakeRankingCache) Get(ctx context.Context, k int) ([]*book.Book, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	return c.entries[k], nil
}

func (c *fakeRankingCache) Set(ctx context.Context, k int, books []*book.Book) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[k] = books
	return nil
}

func (c *fakeRankingCache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[int][]*book.Book)
	c.invalidated++
	return nil
}

func (c *fakeRankingCache) invalidateCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.invalidated
}

// fakeAssetStore 内存图片存储
type fakeAssetStore struct {
	mu       sync.Mutex
	storeErr error
	nextID   int
	stored   map[string]bool // URL → 是否仍存在
	removed  []string
}

func newFakeAssetStore() *fakeAssetStore {
	return &fakeAssetStore{stored: make(map[string]bool)}
}

func (s *fakeAssetStore) Store(ctx context.Context, r io.Reader) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.storeErr != nil {
		return "", s.storeErr
	}
	s.nextID++
	url := fmt.Sprintf("/images/test-%d.jpg", s.nextID)
	s.stored[url] = true
	return url, nil
}

func (s *fakeAssetStore) Remove(ctx context.Context, coverURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// 幂等:删除不存在的图片不报错
	delete(s.stored, coverURL)
	s.removed = append(s.removed, coverURL)
	return nil
}

func (s *fakeAssetStore) exists(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stored[url]
}

// fakePublisher 记录已发布事件
type fakePublisher struct {
	mu     sync.Mutex
	events []string // routing key列表
}

func (p *fakePublisher) Publish(routingKey string, message interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, routingKey)
	return nil
}

func (p *fakePublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string{}, p.events...)
}
