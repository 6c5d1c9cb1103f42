package book

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
)

// fakeRepository 内存仓储实现(仅测试用)
type fakeRepository struct {
	mu     sync.Mutex
	books  map[uint]*Book
	nextID uint
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		books:  make(map[uint]*Book),
		nextID: 1,
	}
}

func (r *fakeRepository) Create(ctx context.Context, b *Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b.ID = r.nextID
	r.nextID++
	cp := *b
	r.books[b.ID] = &cp
	return nil
}

func (r *fakeRepository) FindByID(ctx context.Context, id uint) (*Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.books[id]
	if !ok {
		return nil, ErrBookNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *fakeRepository) Update(ctx context.Context, b *Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.books[b.ID]; !ok {
		return ErrBookNotFound
	}
	cp := *b
	r.books[b.ID] = &cp
	return nil
}

func (r *fakeRepository) Delete(ctx context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.books[id]; !ok {
		return ErrBookNotFound
	}
	delete(r.books, id)
	return nil
}

func (r *fakeRepository) List(ctx context.Context, params ListParams) ([]*Book, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]*Book, 0, len(r.books))
	for _, b := range r.books {
		cp := *b
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, int64(len(result)), nil
}

func (r *fakeRepository) LockByID(ctx context.Context, id uint) (*Book, error) {
	return r.FindByID(ctx, id)
}

func (r *fakeRepository) AddRating(ctx context.Context, bookID, userID uint, grade int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.books[bookID]
	if !ok {
		return ErrBookNotFound
	}
	// 模拟(book_id, user_id)联合唯一索引
	if b.HasRatedBy(userID) {
		return ErrAlreadyRated
	}
	b.Ratings = append(b.Ratings, Rating{UserID: userID, Grade: grade})
	return nil
}

func (r *fakeRepository) ListRatings(ctx context.Context, bookID uint) ([]Rating, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.books[bookID]
	if !ok {
		return nil, ErrBookNotFound
	}
	return append([]Rating{}, b.Ratings...), nil
}

func (r *fakeRepository) UpdateAggregate(ctx context.Context, bookID uint, average float64, count int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.books[bookID]
	if !ok {
		return ErrBookNotFound
	}
	b.AverageRating = average
	b.RatingCount = count
	return nil
}

func (r *fakeRepository) TopRated(ctx context.Context, k int) ([]*Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	// 从评分原始数据聚合,没有评分的书不参与
	ranked := make([]*Book, 0)
	for _, b := range r.books {
		if len(b.Ratings) == 0 {
			continue
		}
		var sum int
		for _, rt := range b.Ratings {
			sum += rt.Grade
		}
		cp := *b
		cp.AverageRating = float64(sum) / float64(len(b.Ratings))
		cp.RatingCount = len(b.Ratings)
		ranked = append(ranked, &cp)
	}
	// 平均分降序,平均分相同按ID升序
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

// TestService_CreateBook 测试创建图书
func TestService_CreateBook(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	ctx := context.Background()

	t.Run("正常创建", func(t *testing.T) {
		b, err := svc.CreateBook(ctx, "Go程序设计语言", "Alan Donovan", "编程", 2016, "/images/gopl.jpg", 1)
		if err != nil {
			t.Fatalf("创建失败: %v", err)
		}
		if b.ID == 0 {
			t.Error("创建后应分配ID")
		}
		if len(b.Ratings) != 0 || b.AverageRating != 0 {
			t.Error("新书评分账本应为空")
		}
	})

	t.Run("必填字段缺失", func(t *testing.T) {
		cases := []struct {
			name                 string
			title, author, genre string
			year                 int
		}{
			{"缺书名", "", "作者", "分类", 2020},
			{"缺作者", "书名", "", "分类", 2020},
			{"缺分类", "书名", "作者", "", 2020},
			{"年份非法", "书名", "作者", "分类", 0},
		}

		for _, tc := range cases {
			_, err := svc.CreateBook(ctx, tc.title, tc.author, tc.genre, tc.year, "", 1)
			if !errors.Is(err, ErrMissingFields) {
				t.Errorf("%s: 期望ErrMissingFields,实际: %v", tc.name, err)
			}
		}
	})
}

// TestService_UpdateBook 测试更新图书的所有权校验
func TestService_UpdateBook(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	ctx := context.Background()

	b, err := svc.CreateBook(ctx, "原标题", "作者", "分类", 2020, "/images/old.jpg", 1)
	if err != nil {
		t.Fatalf("创建失败: %v", err)
	}

	t.Run("创建者可以修改", func(t *testing.T) {
		updated, err := svc.UpdateBook(ctx, b.ID, 1, "新标题", "", "", 0, "")
		if err != nil {
			t.Fatalf("更新失败: %v", err)
		}
		if updated.Title != "新标题" {
			t.Errorf("标题应更新,实际'%s'", updated.Title)
		}
		// coverURL为空表示保留原封面
		if updated.CoverURL != "/images/old.jpg" {
			t.Errorf("封面应保留,实际'%s'", updated.CoverURL)
		}
	})

	t.Run("非创建者不能修改", func(t *testing.T) {
		_, err := svc.UpdateBook(ctx, b.ID, 999, "恶意修改", "", "", 0, "")
		if !errors.Is(err, ErrNotOwner) {
			t.Errorf("期望ErrNotOwner,实际: %v", err)
		}
	})

	t.Run("图书不存在", func(t *testing.T) {
		_, err := svc.UpdateBook(ctx, 99999, 1, "新标题", "", "", 0, "")
		if !errors.Is(err, ErrBookNotFound) {
			t.Errorf("期望ErrBookNotFound,实际: %v", err)
		}
	})
}

// TestService_DeleteBook 测试删除图书的所有权校验
func TestService_DeleteBook(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	ctx := context.Background()

	b, _ := svc.CreateBook(ctx, "待删除", "作者", "分类", 2020, "/images/cover.jpg", 1)

	t.Run("非创建者不能删除", func(t *testing.T) {
		_, err := svc.DeleteBook(ctx, b.ID, 999)
		if !errors.Is(err, ErrNotOwner) {
			t.Errorf("期望ErrNotOwner,实际: %v", err)
		}
	})

	t.Run("创建者可以删除", func(t *testing.T) {
		deleted, err := svc.DeleteBook(ctx, b.ID, 1)
		if err != nil {
			t.Fatalf("删除失败: %v", err)
		}
		// 返回被删图书,调用方据此释放封面资源
		if deleted.CoverURL != "/images/cover.jpg" {
			t.Errorf("应返回被删图书的封面URL,实际'%s'", deleted.CoverURL)
		}

		_, err = svc.GetBookByID(ctx, b.ID)
		if !errors.Is(err, ErrBookNotFound) {
			t.Errorf("删除后查询应返回ErrBookNotFound,实际: %v", err)
		}
	})
}

// TestService_TopRated 测试排行榜查询
func TestService_TopRated(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	ctx := context.Background()

	// 准备数据:4本书,3本有评分,1本没有
	b1, _ := svc.CreateBook(ctx, "图书A", "作者", "分类", 2020, "", 1) // 平均4.5
	b2, _ := svc.CreateBook(ctx, "图书B", "作者", "分类", 2020, "", 1) // 平均3
	b3, _ := svc.CreateBook(ctx, "图书C", "作者", "分类", 2020, "", 1) // 平均4.5(与A并列)
	_, _ = svc.CreateBook(ctx, "图书D", "作者", "分类", 2020, "", 1)  // 无评分

	_ = repo.AddRating(ctx, b1.ID, 100, 4)
	_ = repo.AddRating(ctx, b1.ID, 101, 5)
	_ = repo.AddRating(ctx, b2.ID, 100, 3)
	_ = repo.AddRating(ctx, b3.ID, 100, 5)
	_ = repo.AddRating(ctx, b3.ID, 101, 4)

	t.Run("平均分降序_并列按ID升序", func(t *testing.T) {
		top, err := svc.TopRated(ctx, 10)
		if err != nil {
			t.Fatalf("查询失败: %v", err)
		}

		// 无评分的图书D不参与,结果只有3本
		if len(top) != 3 {
			t.Fatalf("期望3本,实际%d本", len(top))
		}

		// A与C并列4.5,A先创建(ID更小)排前
		if top[0].ID != b1.ID || top[1].ID != b3.ID || top[2].ID != b2.ID {
			t.Errorf("排名顺序错误: %d, %d, %d", top[0].ID, top[1].ID, top[2].ID)
		}
	})

	t.Run("k非法时取默认值", func(t *testing.T) {
		top, err := svc.TopRated(ctx, 0)
		if err != nil {
			t.Fatalf("查询失败: %v", err)
		}
		// 默认前3名,有评分的恰好3本
		if len(top) != DefaultTopK {
			t.Errorf("期望%d本,实际%d本", DefaultTopK, len(top))
		}
	})

	t.Run("k小于有评分的书时截断", func(t *testing.T) {
		top, err := svc.TopRated(ctx, 1)
		if err != nil {
			t.Fatalf("查询失败: %v", err)
		}
		if len(top) != 1 || top[0].ID != b1.ID {
			t.Errorf("期望仅返回第1名图书A,实际%d本", len(top))
		}
	})
}
