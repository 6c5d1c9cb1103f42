package book

import (
	"context"
)

// Repository 图书仓储接口(依赖倒置原则)
// 设计说明:
// 1. 由domain层定义接口,infrastructure层实现
// 2. 便于Mock测试,不依赖具体数据库实现
// 3. 评分账本属于Book聚合,评分相关的持久化操作也由本接口承担,
//    保证"评分集合+平均分"只有一条写路径
type Repository interface {
	// Create 创建图书(空评分账本)
	Create(ctx context.Context, book *Book) error

	// FindByID 根据ID查找图书(含评分账本)
	FindByID(ctx context.Context, id uint) (*Book, error)

	// Update 更新图书基本信息(不触碰评分账本)
	Update(ctx context.Context, book *Book) error

	// Delete 删除图书(软删除,连同评分账本一起不可见)
	Delete(ctx context.Context, id uint) error

	// List 分页查询图书列表(投影视图,不加载评分明细)
	List(ctx context.Context, params ListParams) ([]*Book, int64, error)

	// LockByID 悲观锁查询图书(SELECT FOR UPDATE)
	// 评分提交的"读-改-写"必须以本方法开头,锁住图书行后,
	// 同一本书上的并发评分会被数据库串行化,防止平均分基于过期快照计算
	// 注意:必须在事务内调用(通过TxManager传递事务DB)
	LockByID(ctx context.Context, id uint) (*Book, error)

	// AddRating 追加一条评分记录
	// (book_id, user_id)联合唯一索引兜底:并发下的重复插入返回ErrAlreadyRated
	AddRating(ctx context.Context, bookID, userID uint, grade int) error

	// ListRatings 查询一本书的全部评分
	ListRatings(ctx context.Context, bookID uint) ([]Rating, error)

	// UpdateAggregate 更新派生的平均分与评分数
	// 必须与AddRating处于同一事务:任何观察者都不能看到
	// "评分已追加但平均分未更新"(或反之)的中间状态
	UpdateAggregate(ctx context.Context, bookID uint, average float64, count int) error

	// TopRated 查询平均分最高的前k本书
	// 设计要点:平均分从ratings原始数据聚合计算(AVG(grade)),
	// 不信任books表缓存的average_rating字段,使排名成为可独立校验的属性
	// 排序:平均分降序;平均分相同时按图书ID升序(即创建先后顺序,稳定可重现)
	// 没有任何评分的书不参与排名
	TopRated(ctx context.Context, k int) ([]*Book, error)
}

// ListParams 列表查询参数
type ListParams struct {
	Page     int    // 页码(从1开始)
	PageSize int    // 每页数量
	Keyword  string // 搜索关键词(搜索标题、作者、分类)
	SortBy   string // 排序字段(year_asc, year_desc, created_at_desc)
}
