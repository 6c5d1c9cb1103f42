package book

import (
	"log"
	"time"
)

// 领域事件路由键
const (
	EventBookCreated = "book.created"
	EventBookDeleted = "book.deleted"
	EventBookRated   = "book.rated"
)

// EventPublisher 领域事件发布接口
// 设计说明:
// 1. 用例层只依赖接口,具体实现(RabbitMQ+熔断器)在main中装配
// 2. 事件发布是尽力而为:失败只记日志,不影响主流程
//    (评分已提交成功,不能因为MQ故障回滚用户的评分)
type EventPublisher interface {
	Publish(routingKey string, message interface{}) error
}

// NoopPublisher 空实现(MQ未启用时使用)
type NoopPublisher struct{}

func (NoopPublisher) Publish(routingKey string, message interface{}) error {
	return nil
}

// BookCreatedEvent 图书创建事件
type BookCreatedEvent struct {
	BookID    uint      `json:"book_id"`
	Title     string    `json:"title"`
	OwnerID   uint      `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// BookDeletedEvent 图书删除事件
type BookDeletedEvent struct {
	BookID    uint      `json:"book_id"`
	OwnerID   uint      `json:"owner_id"`
	DeletedAt time.Time `json:"deleted_at"`
}

// BookRatedEvent 图书评分事件
type BookRatedEvent struct {
	BookID        uint      `json:"book_id"`
	UserID        uint      `json:"user_id"`
	Grade         int       `json:"grade"`
	AverageRating float64   `json:"average_rating"`
	RatingCount   int       `json:"rating_count"`
	RatedAt       time.Time `json:"rated_at"`
}

// publishEvent 发布领域事件(尽力而为)
func publishEvent(publisher EventPublisher, routingKey string, event interface{}) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(routingKey, event); err != nil {
		// 事件丢失可接受,主流程已提交
		log.Printf("发布领域事件失败 [%s]: %v", routingKey, err)
	}
}
