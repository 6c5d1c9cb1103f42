package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xiebiao/grimoire/internal/domain/book"
	apperrors "github.com/xiebiao/grimoire/pkg/errors"
)

// bookRepository 图书仓储实现(MySQL)
// 设计说明:
// 1. 实现domain/book/repository.go定义的接口
// 2. 负责domain实体与GORM模型之间的转换
// 3. 处理数据库特定的错误(如评分唯一索引冲突),转换为业务错误
type bookRepository struct {
	db *gorm.DB
}

// NewBookRepository 创建图书仓储
func NewBookRepository(db *gorm.DB) book.Repository {
	return &bookRepository{db: db}
}

// Create 创建图书
func (r *bookRepository) Create(ctx context.Context, b *book.Book) error {
	// 1. 领域实体 → GORM模型
	model := &BookModel{
		Title:         b.Title,
		Author:        b.Author,
		Genre:         b.Genre,
		Year:          b.Year,
		CoverURL:      b.CoverURL,
		OwnerID:       b.OwnerID,
		AverageRating: b.AverageRating,
		RatingCount:   b.RatingCount,
	}

	// 2. 插入数据库
	db := r.getDB(ctx)
	if err := db.Create(model).Error; err != nil {
		return apperrors.Wrap(err, "创建图书失败")
	}

	// 3. 回填自增ID
	b.ID = model.ID
	b.CreatedAt = model.CreatedAt
	b.UpdatedAt = model.UpdatedAt

	return nil
}

// FindByID 根据ID查找图书(含评分账本)
func (r *bookRepository) FindByID(ctx context.Context, id uint) (*book.Book, error) {
	var model BookModel
	db := r.getDB(ctx)
	err := db.First(&model, id).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, book.ErrBookNotFound
		}
		return nil, apperrors.Wrap(err, "查询图书失败")
	}

	// 加载评分账本
	ratings, err := r.ListRatings(ctx, id)
	if err != nil {
		return nil, err
	}

	entity := toBookEntity(&model)
	entity.Ratings = ratings
	return entity, nil
}

// Update 更新图书基本信息
// 注意:只更新列出的列,不触碰评分账本和派生字段
// (派生字段只能由评分事务通过UpdateAggregate更新)
func (r *bookRepository) Update(ctx context.Context, b *book.Book) error {
	db := r.getDB(ctx)
	result := db.Model(&BookModel{}).
		Where("id = ?", b.ID).
		Updates(map[string]interface{}{
			"title":     b.Title,
			"author":    b.Author,
			"genre":     b.Genre,
			"year":      b.Year,
			"cover_url": b.CoverURL,
		})

	if result.Error != nil {
		return apperrors.Wrap(result.Error, "更新图书失败")
	}

	if result.RowsAffected == 0 {
		return book.ErrBookNotFound
	}

	return nil
}

// Delete 删除图书(软删除)
// 评分记录不物理删除:books行软删除后,排名查询通过JOIN自动排除其评分
func (r *bookRepository) Delete(ctx context.Context, id uint) error {
	db := r.getDB(ctx)
	result := db.Delete(&BookModel{}, id)

	if result.Error != nil {
		return apperrors.Wrap(result.Error, "删除图书失败")
	}

	if result.RowsAffected == 0 {
		return book.ErrBookNotFound
	}

	return nil
}

// List 分页查询图书列表
// 列表是投影视图:返回派生的平均分和评分数,不加载评分明细
func (r *bookRepository) List(ctx context.Context, params book.ListParams) ([]*book.Book, int64, error) {
	var models []BookModel
	var total int64

	// 构建查询
	query := r.getDB(ctx).Model(&BookModel{})

	// 关键词搜索(搜索标题、作者、分类)
	if params.Keyword != "" {
		keyword := "%" + params.Keyword + "%"
		query = query.Where("title LIKE ? OR author LIKE ? OR genre LIKE ?", keyword, keyword, keyword)
	}

	// 查询总数
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperrors.Wrap(err, "查询图书总数失败")
	}

	// 排序
	switch params.SortBy {
	case "year_asc":
		query = query.Order("year ASC")
	case "year_desc":
		query = query.Order("year DESC")
	case "created_at_desc":
		query = query.Order("created_at DESC")
	default:
		query = query.Order("created_at DESC") // 默认按创建时间降序
	}

	// 分页
	offset := (params.Page - 1) * params.PageSize
	query = query.Limit(params.PageSize).Offset(offset)

	// 查询数据
	if err := query.Find(&models).Error; err != nil {
		return nil, 0, apperrors.Wrap(err, "查询图书列表失败")
	}

	// 转换为领域实体
	books := make([]*book.Book, len(models))
	for i, model := range models {
		books[i] = toBookEntity(&model)
	}

	return books, total, nil
}

// LockByID 悲观锁查询图书(用于评分提交)
// SELECT FOR UPDATE锁定图书行,同一本书上的并发评分被数据库串行化,
// 后到的事务会阻塞在这里,直到先到的事务提交
func (r *bookRepository) LockByID(ctx context.Context, id uint) (*book.Book, error) {
	var model BookModel
	// 教学要点:必须使用getDB(ctx)从context获取事务DB
	db := r.getDB(ctx)
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&model, id).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, book.ErrBookNotFound
		}
		return nil, apperrors.Wrap(err, "锁定图书失败")
	}

	// 行锁拿到后再加载评分账本,读到的一定是最新提交的账本
	ratings, err := r.ListRatings(ctx, id)
	if err != nil {
		return nil, err
	}

	entity := toBookEntity(&model)
	entity.Ratings = ratings
	return entity, nil
}

// AddRating 追加一条评分记录
// 教学要点:
// 1. (book_id, user_id)联合唯一索引是防重复的最后一道防线:
//    即使应用层的查重被绕过,这里也会拿到Duplicate Entry错误
// 2. 必须使用getDB(ctx)参与事务,与UpdateAggregate同进退
func (r *bookRepository) AddRating(ctx context.Context, bookID, userID uint, grade int) error {
	model := &RatingModel{
		BookID: bookID,
		UserID: userID,
		Grade:  grade,
	}

	db := r.getDB(ctx)
	if err := db.Create(model).Error; err != nil {
		if isDuplicateError(err) {
			return book.ErrAlreadyRated
		}
		return apperrors.Wrap(err, "保存评分失败")
	}

	return nil
}

// ListRatings 查询一本书的全部评分(按评分先后顺序)
func (r *bookRepository) ListRatings(ctx context.Context, bookID uint) ([]book.Rating, error) {
	var models []RatingModel
	db := r.getDB(ctx)
	err := db.Where("book_id = ?", bookID).Order("id ASC").Find(&models).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "查询评分列表失败")
	}

	ratings := make([]book.Rating, len(models))
	for i, m := range models {
		ratings[i] = book.Rating{
			UserID:    m.UserID,
			Grade:     m.Grade,
			CreatedAt: m.CreatedAt,
		}
	}
	return ratings, nil
}

// UpdateAggregate 更新派生的平均分与评分数
// 必须与AddRating在同一事务内调用:行锁保证没有其他事务
// 会在两者之间观察到或修改这本书
func (r *bookRepository) UpdateAggregate(ctx context.Context, bookID uint, average float64, count int) error {
	db := r.getDB(ctx)
	result := db.Model(&BookModel{}).
		Where("id = ?", bookID).
		Updates(map[string]interface{}{
			"average_rating": average,
			"rating_count":   count,
		})

	if result.Error != nil {
		return apperrors.Wrap(result.Error, "更新评分统计失败")
	}

	if result.RowsAffected == 0 {
		return book.ErrBookNotFound
	}

	return nil
}

// TopRated 查询平均分最高的前k本书
// 设计要点:
// 1. 平均分从ratings原始数据实时聚合(AVG),不读books表缓存的average_rating,
//    排名因此可以独立于派生字段校验
// 2. INNER JOIN天然排除没有评分的书;books.deleted_at过滤软删除
// 3. 平均分相同时按books.id升序(创建先后),排序稳定可重现
func (r *bookRepository) TopRated(ctx context.Context, k int) ([]*book.Book, error) {
	type topRow struct {
		BookModel
		AvgGrade float64
	}

	var rows []topRow
	db := r.getDB(ctx)
	err := db.Model(&BookModel{}).
		Select("books.*, AVG(ratings.grade) AS avg_grade").
		Joins("INNER JOIN ratings ON ratings.book_id = books.id").
		Where("books.deleted_at IS NULL").
		Group("books.id").
		Order("avg_grade DESC, books.id ASC").
		Limit(k).
		Scan(&rows).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "查询评分排行失败")
	}

	books := make([]*book.Book, len(rows))
	for i := range rows {
		b := toBookEntity(&rows[i].BookModel)
		// 对外展示实时聚合出的平均分(正常情况下与派生字段一致)
		b.AverageRating = rows[i].AvgGrade
		books[i] = b
	}
	return books, nil
}

// =========================================
// 辅助函数:模型转换
// =========================================

// toBookEntity GORM模型 → 领域实体(不含评分明细)
func toBookEntity(model *BookModel) *book.Book {
	return &book.Book{
		ID:            model.ID,
		Title:         model.Title,
		Author:        model.Author,
		Genre:         model.Genre,
		Year:          model.Year,
		CoverURL:      model.CoverURL,
		OwnerID:       model.OwnerID,
		AverageRating: model.AverageRating,
		RatingCount:   model.RatingCount,
		CreatedAt:     model.CreatedAt,
		UpdatedAt:     model.UpdatedAt,
	}
}

// getDB 从context获取事务DB,如果没有则使用默认DB
// 教学要点:事务传递机制
func (r *bookRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value("tx").(*gorm.DB); ok {
		return tx
	}
	return r.db
}
