package book

import (
	"context"
)

// 排名查询参数边界
const (
	DefaultTopK = 3  // 默认返回前3名
	MaxTopK     = 50 // 防止一次性拉取过多数据
)

// Service 图书领域服务接口
// 设计说明:
// 1. 领域服务封装跨实体的业务规则校验与所有权检查
// 2. 不依赖具体的Repository实现(依赖倒置)
// 3. 评分提交涉及事务与行锁,由应用层的RateBookUseCase编排,
//    不在本接口中(防止并发写入破坏平均分一致性)
type Service interface {
	// CreateBook 创建图书
	// 业务规则:
	// - 书名、作者、分类、出版年份必填(描述性字段只校验存在性,内容不做解释)
	// - 新书的评分账本为空,平均分为0
	CreateBook(ctx context.Context, title, author, genre string, year int, coverURL string, ownerID uint) (*Book, error)

	// GetBookByID 根据ID获取图书详情(含评分账本)
	GetBookByID(ctx context.Context, id uint) (*Book, error)

	// UpdateBook 更新图书信息
	// 业务规则:只有创建者本人可以修改;空值字段不修改;coverURL为空表示保留原封面
	UpdateBook(ctx context.Context, id, userID uint, title, author, genre string, year int, coverURL string) (*Book, error)

	// DeleteBook 删除图书
	// 业务规则:只有创建者本人可以删除
	// 返回被删除的图书,调用方据此释放关联的封面图片资源
	DeleteBook(ctx context.Context, id, userID uint) (*Book, error)

	// ListBooks 分页查询图书列表
	ListBooks(ctx context.Context, params ListParams) ([]*Book, int64, error)

	// TopRated 查询平均分最高的前k本书
	// k<=0时取默认值3;没有评分的书不参与排名,结果可能少于k本
	TopRated(ctx context.Context, k int) ([]*Book, error)
}

// service 领域服务实现
type service struct {
	repo Repository
}

// NewService 创建图书领域服务
func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// CreateBook 创建图书
func (s *service) CreateBook(ctx context.Context, title, author, genre string, year int, coverURL string, ownerID uint) (*Book, error) {
	// 1. 必填字段校验
	if title == "" || author == "" || genre == "" || year <= 0 {
		return nil, ErrMissingFields
	}

	// 2. 创建图书实体(空评分账本)
	b := NewBook(title, author, genre, year, coverURL, ownerID)

	// 3. 持久化
	if err := s.repo.Create(ctx, b); err != nil {
		return nil, err
	}

	return b, nil
}

// GetBookByID 根据ID获取图书
func (s *service) GetBookByID(ctx context.Context, id uint) (*Book, error) {
	return s.repo.FindByID(ctx, id)
}

// UpdateBook 更新图书信息
func (s *service) UpdateBook(ctx context.Context, id, userID uint, title, author, genre string, year int, coverURL string) (*Book, error) {
	// 1. 查询图书
	b, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// 2. 权限检查:只有创建者可以修改
	if !b.IsOwnedBy(userID) {
		return nil, ErrNotOwner
	}

	// 3. 更新信息
	b.UpdateInfo(title, author, genre, year)
	if coverURL != "" {
		b.SetCover(coverURL)
	}

	// 4. 持久化
	if err := s.repo.Update(ctx, b); err != nil {
		return nil, err
	}

	return b, nil
}

// DeleteBook 删除图书
func (s *service) DeleteBook(ctx context.Context, id, userID uint) (*Book, error) {
	// 1. 查询图书
	b, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// 2. 权限检查
	if !b.IsOwnedBy(userID) {
		return nil, ErrNotOwner
	}

	// 3. 执行删除(软删除)
	if err := s.repo.Delete(ctx, id); err != nil {
		return nil, err
	}

	return b, nil
}

// ListBooks 分页查询图书列表
func (s *service) ListBooks(ctx context.Context, params ListParams) ([]*Book, int64, error) {
	return s.repo.List(ctx, params)
}

// TopRated 查询平均分最高的前k本书
func (s *service) TopRated(ctx context.Context, k int) ([]*Book, error) {
	if k <= 0 {
		k = DefaultTopK
	}
	if k > MaxTopK {
		k = MaxTopK
	}
	return s.repo.TopRated(ctx, k)
}
