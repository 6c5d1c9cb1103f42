package book

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/xiebiao/grimoire/internal/domain/book"
	"github.com/xiebiao/grimoire/pkg/metrics"
	"github.com/xiebiao/grimoire/pkg/tracing"
)

// TxManager 事务管理接口
// 设计说明:用例只依赖"在事务中执行"这一能力,
// 生产环境由mysql.TxManager实现,单元测试可用内存实现替换
type TxManager interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// RateBookUseCase 提交评分用例
// 教学要点:这是整个项目最核心的用例
// 涉及:事务处理、并发控制、业务规则校验、缓存失效
type RateBookUseCase struct {
	bookRepo  book.Repository
	txManager TxManager
	cache     RankingCache
	publisher EventPublisher
}

// NewRateBookUseCase 创建评分用例
func NewRateBookUseCase(
	bookRepo book.Repository,
	txManager TxManager,
	cache RankingCache,
	publisher EventPublisher,
) *RateBookUseCase {
	return &RateBookUseCase{
		bookRepo:  bookRepo,
		txManager: txManager,
		cache:     cache,
		publisher: publisher,
	}
}

// RateBookRequest 评分请求DTO
type RateBookRequest struct {
	BookID uint // 图书ID(从URL路径提取)
	UserID uint // 评分用户ID(从JWT中提取,或匿名模式下从请求体提取)
	Grade  int  // 评分(0-5整数)
}

// Execute 执行评分提交
// 教学重点:防止并发评分丢失的完整流程
//
// 核心问题:平均分基于过期快照计算
// 场景:一本书已有1条评分,两个用户同时提交评分
// 错误实现:
//  1. 读取图书 → 账本里1条评分
//  2. 追加自己的评分并重算平均分 → 按2条算
//  3. 写回
//     结果:两个请求都按2条评分算平均,后写的覆盖先写的,
//     最终账本3条评分,平均分却是按2条算的(不变式被破坏!)
//
// 正确实现:悲观锁
//  1. SELECT FOR UPDATE 锁定图书行
//  2. 基于最新账本做范围校验与查重
//  3. 追加评分记录((book_id,user_id)唯一索引兜底)
//  4. 用完整账本重算平均分并写回
//  5. COMMIT释放锁
func (uc *RateBookUseCase) Execute(ctx context.Context, req RateBookRequest) (*BookResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "application/book", "RateBook")
	defer span.End()

	start := time.Now()

	// 1. 范围校验(不依赖任何状态,无需进入事务)
	if !book.IsValidGrade(req.Grade) {
		metrics.IncCounterVec(metrics.RatingsRejectedTotal, map[string]string{"reason": "invalid_grade"})
		return nil, book.ErrInvalidGrade
	}

	// 使用事务执行整个评分流程
	// 教学要点:账本追加和平均分更新要么全成功,要么全失败,
	// 任何观察者都看不到两者不一致的中间状态
	var result *book.Book
	err := uc.txManager.Transaction(ctx, func(txCtx context.Context) error {
		// ========================================
		// 步骤1:锁定图书行(悲观锁,串行化同一本书的评分)
		// ========================================
		// LockByID执行:SELECT * FROM books WHERE id = ? FOR UPDATE
		// 同一本书上的并发评分请求会在这里排队
		b, err := uc.bookRepo.LockByID(txCtx, req.BookID)
		if err != nil {
			return err
		}

		// ========================================
		// 步骤2:领域规则校验+账本追加(内存中)
		// ========================================
		// AddRating做三件事:范围校验、查重、追加后重算平均分
		// 教学要点:查重必须在锁定后基于最新账本做,
		// 否则两个并发请求都可能通过查重
		if err := b.AddRating(req.UserID, req.Grade); err != nil {
			return err
		}

		// ========================================
		// 步骤3:持久化评分记录
		// ========================================
		// (book_id,user_id)唯一索引是查重的最后一道防线
		if err := uc.bookRepo.AddRating(txCtx, req.BookID, req.UserID, req.Grade); err != nil {
			return err
		}

		// ========================================
		// 步骤4:写回派生的平均分与评分数
		// ========================================
		if err := uc.bookRepo.UpdateAggregate(txCtx, req.BookID, b.AverageRating, b.RatingCount); err != nil {
			return err
		}

		// ========================================
		// 步骤5:返回更新后的图书(事务自动COMMIT)
		// ========================================
		result = b
		return nil
	})

	if err != nil {
		uc.recordRejection(err)
		return nil, err
	}

	// 评分已提交,以下均为尽力而为的后置动作
	// 缓存失效:任何一本书的评分变化都可能改变排行榜
	if uc.cache != nil {
		if cacheErr := uc.cache.Invalidate(ctx); cacheErr != nil {
			// 缓存有TTL兜底,失效失败只记录,不影响响应
			log.Printf("失效排行榜缓存失败: %v", cacheErr)
		}
	}

	// 发布评分事件
	publishEvent(uc.publisher, EventBookRated, BookRatedEvent{
		BookID:        result.ID,
		UserID:        req.UserID,
		Grade:         req.Grade,
		AverageRating: result.AverageRating,
		RatingCount:   result.RatingCount,
		RatedAt:       time.Now(),
	})

	metrics.IncCounter(metrics.RatingsSubmittedTotal)
	metrics.ObserveHistogram(metrics.RatingSubmissionDuration, time.Since(start).Seconds())

	return toBookResponse(result), nil
}

// recordRejection 按拒绝原因记录指标
func (uc *RateBookUseCase) recordRejection(err error) {
	reason := "other"
	switch {
	case errors.Is(err, book.ErrInvalidGrade):
		reason = "invalid_grade"
	case errors.Is(err, book.ErrAlreadyRated):
		reason = "duplicate"
	case errors.Is(err, book.ErrBookNotFound):
		reason = "not_found"
	}
	metrics.IncCounterVec(metrics.RatingsRejectedTotal, map[string]string{"reason": reason})
}
