package eventbus

import (
	"log"
	"time"

	appbook "github.com/xiebiao/grimoire/internal/application/book"
	"github.com/xiebiao/grimoire/internal/infrastructure/config"
	"github.com/xiebiao/grimoire/pkg/circuitbreaker"
	"github.com/xiebiao/grimoire/pkg/metrics"
	"github.com/xiebiao/grimoire/pkg/mq"
)

// Publisher RabbitMQ领域事件发布器(带熔断保护)
// 设计说明:
// 1. 实现application层定义的EventPublisher接口
// 2. MQ故障时熔断器快速失败,避免每次发布都等待连接超时拖慢主流程
// 3. 事件发布本身是尽力而为,熔断期间的事件直接丢弃
type Publisher struct {
	publisher *mq.Publisher
	breaker   *circuitbreaker.CircuitBreaker
}

// NewPublisher 创建领域事件发布器
// MQ未启用时返回Noop实现,调用方无需感知差异
func NewPublisher(cfg *config.Config) (appbook.EventPublisher, func(), error) {
	if !cfg.MQ.Enabled {
		return appbook.NoopPublisher{}, func() {}, nil
	}

	pub, err := mq.NewPublisher(cfg.MQ.URL, cfg.MQ.Exchange, "topic")
	if err != nil {
		return nil, nil, err
	}

	breaker := circuitbreaker.NewCircuitBreaker("event-publisher", circuitbreaker.Config{
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts circuitbreaker.Counts) bool {
			// 连续5次失败后熔断
			return counts.ConsecutiveFailures >= 5
		},
	})

	// 熔断状态变化上报指标
	breaker.SetStateChangeCallback(func(name string, from, to circuitbreaker.State) {
		log.Printf("熔断器[%s]状态变化: %s → %s", name, from, to)
		metrics.SetGaugeVec(metrics.CircuitBreakerState, map[string]string{"name": name}, float64(to))
	})

	cleanup := func() {
		if err := pub.Close(); err != nil {
			log.Printf("关闭MQ连接失败: %v", err)
		}
	}

	return &Publisher{publisher: pub, breaker: breaker}, cleanup, nil
}

// Publish 发布领域事件
func (p *Publisher) Publish(routingKey string, message interface{}) error {
	return p.breaker.Execute(func() error {
		return p.publisher.Publish(routingKey, message)
	})
}
