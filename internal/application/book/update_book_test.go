package book

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/xiebiao/grimoire/internal/domain/book"
	"github.com/xiebiao/grimoire/pkg/metrics"
)

func newUpdateBookFixture(t *testing.T) (*UpdateBookUseCase, *memRepository, *fakeAssetStore) {
	t.Helper()
	metrics.InitMetrics()
	repo := newMemRepository()
	store := newFakeAssetStore()
	uc := NewUpdateBookUseCase(book.NewService(repo), store)
	return uc, repo, store
}

// TestUpdateBook_TextOnly 测试只更新文字信息
func TestUpdateBook_TextOnly(t *testing.T) {
	uc, repo, store := newUpdateBookFixture(t)
	b := seedBook(t, repo)

	resp, err := uc.Execute(context.Background(), UpdateBookRequest{
		BookID: b.ID,
		UserID: 1,
		Title:  "新标题",
		// Cover为nil:保留原封面
	})
	if err != nil {
		t.Fatalf("更新失败: %v", err)
	}

	if resp.Title != "新标题" {
		t.Errorf("标题应更新,实际'%s'", resp.Title)
	}
	if resp.CoverURL != "/images/cover.jpg" {
		t.Errorf("未传新封面时原封面应保留,实际'%s'", resp.CoverURL)
	}
	// 没有任何图片操作
	store.mu.Lock()
	ops := len(store.stored) + len(store.removed)
	store.mu.Unlock()
	if ops != 0 {
		t.Error("只更新文字时不应有图片操作")
	}
}

// TestUpdateBook_ReplaceCover 测试更换封面
// 顺序:先落盘新图 → 数据库更新 → 删除旧图
func TestUpdateBook_ReplaceCover(t *testing.T) {
	uc, repo, store := newUpdateBookFixture(t)
	b := seedBook(t, repo)

	resp, err := uc.Execute(context.Background(), UpdateBookRequest{
		BookID: b.ID,
		UserID: 1,
		Cover:  strings.NewReader("new-image-bytes"),
	})
	if err != nil {
		t.Fatalf("更新失败: %v", err)
	}

	if resp.CoverURL == "/images/cover.jpg" || resp.CoverURL == "" {
		t.Errorf("封面URL应更新为新图,实际'%s'", resp.CoverURL)
	}
	if !store.exists(resp.CoverURL) {
		t.Error("新封面应已落盘")
	}

	// 旧封面已释放
	store.mu.Lock()
	removed := append([]string{}, store.removed...)
	store.mu.Unlock()
	if len(removed) != 1 || removed[0] != "/images/cover.jpg" {
		t.Errorf("旧封面应被删除,实际删除: %v", removed)
	}
}

// TestUpdateBook_NotOwner 测试非创建者更新被拒绝
// 所有权预检在图片落盘之前:无权用户的上传不落盘
func TestUpdateBook_NotOwner(t *testing.T) {
	uc, repo, store := newUpdateBookFixture(t)
	b := seedBook(t, repo)

	_, err := uc.Execute(context.Background(), UpdateBookRequest{
		BookID: b.ID,
		UserID: 999,
		Title:  "恶意修改",
		Cover:  strings.NewReader("new-image-bytes"),
	})
	if !errors.Is(err, book.ErrNotOwner) {
		t.Errorf("期望ErrNotOwner,实际: %v", err)
	}

	// 预检失败,图片没有落盘
	store.mu.Lock()
	stored := len(store.stored)
	store.mu.Unlock()
	if stored != 0 {
		t.Error("无权用户的上传不应落盘")
	}
}

// TestUpdateBook_NotFound 测试更新不存在的图书
func TestUpdateBook_NotFound(t *testing.T) {
	uc, _, _ := newUpdateBookFixture(t)

	_, err := uc.Execute(context.Background(), UpdateBookRequest{
		BookID: 99999,
		UserID: 1,
		Title:  "新标题",
	})
	if !errors.Is(err, book.ErrBookNotFound) {
		t.Errorf("期望ErrBookNotFound,实际: %v", err)
	}
}
