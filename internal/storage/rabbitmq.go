package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"resume-scorer/internal/config"
	"resume-scorer/internal/tracing"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DirectReplyQueue RabbitMQ内置的直接回复伪队列
const DirectReplyQueue = "amq.rabbitmq.reply-to"

const defaultPublishTimeout = 5 * time.Second

var rabbitTracer = otel.Tracer("resume-scorer/storage/rabbitmq")

// ErrReplyChannelClosed 等待回复时通道被关闭
var ErrReplyChannelClosed = errors.New("回复通道已关闭")

// DeliveryHandler 处理一条消息，返回 true 表示确认，false 表示拒绝并重新入队
type DeliveryHandler func(ctx context.Context, d amqp.Delivery) bool

// RabbitMQ 提供队列传输：请求/回复客户端与消费者
type RabbitMQ struct {
	conn         *amqp.Connection
	channelPool  sync.Pool
	queueMu      sync.Mutex
	queueMap     map[string]bool // 记录已声明的queue
	publishMutex sync.Mutex      // 保护发布操作
	cfg          *config.RabbitMQConfig
}

// NewRabbitMQ 创建RabbitMQ客户端
func NewRabbitMQ(cfg *config.RabbitMQConfig) (*RabbitMQ, error) {
	if cfg == nil {
		return nil, fmt.Errorf("RabbitMQ配置不能为空")
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("RabbitMQ URL配置不能为空")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("无法连接到RabbitMQ服务器: %w", err)
	}

	mq := &RabbitMQ{
		conn:     conn,
		queueMap: make(map[string]bool),
		cfg:      cfg,
	}
	mq.channelPool = sync.Pool{
		New: func() interface{} {
			ch, errPool := conn.Channel()
			if errPool != nil {
				log.Printf("创建RabbitMQ通道失败: %v", errPool)
				return nil
			}
			return ch
		},
	}

	testCh := mq.getChannel()
	if testCh == nil {
		conn.Close()
		return nil, fmt.Errorf("无法创建RabbitMQ通道")
	}
	mq.putChannel(testCh)

	log.Printf("成功连接到RabbitMQ服务器")
	return mq, nil
}

// 获取可用通道
func (r *RabbitMQ) getChannel() *amqp.Channel {
	ch := r.channelPool.Get()
	if ch == nil {
		newCh, err := r.conn.Channel()
		if err != nil {
			log.Printf("创建新RabbitMQ通道失败: %v", err)
			return nil
		}
		return newCh
	}
	c := ch.(*amqp.Channel)
	if c.IsClosed() {
		return r.getChannelFresh()
	}
	return c
}

func (r *RabbitMQ) getChannelFresh() *amqp.Channel {
	ch, err := r.conn.Channel()
	if err != nil {
		log.Printf("创建新RabbitMQ通道失败: %v", err)
		return nil
	}
	return ch
}

// 归还通道到池
func (r *RabbitMQ) putChannel(ch *amqp.Channel) {
	if ch != nil && !ch.IsClosed() {
		r.channelPool.Put(ch)
	}
}

// Close 关闭连接
func (r *RabbitMQ) Close() error {
	return r.conn.Close()
}

// EnsureQueue 确保持久化队列存在
func (r *RabbitMQ) EnsureQueue(queueName string) error {
	r.queueMu.Lock()
	defer r.queueMu.Unlock()
	if r.queueMap[queueName] {
		return nil
	}

	ch := r.getChannel()
	if ch == nil {
		return fmt.Errorf("无法获取RabbitMQ通道")
	}
	defer r.putChannel(ch)

	if _, err := ch.QueueDeclare(
		queueName, // 队列名
		true,      // 持久化
		false,     // 自动删除
		false,     // 排他
		false,     // 非阻塞
		nil,       // 参数
	); err != nil {
		return fmt.Errorf("声明队列 %s 失败: %w", queueName, err)
	}
	r.queueMap[queueName] = true
	return nil
}

func (r *RabbitMQ) publishTimeout() time.Duration {
	if r.cfg == nil {
		return defaultPublishTimeout
	}
	return config.GetDuration(r.cfg.PublishTimeout, defaultPublishTimeout)
}

// Call 发布一个分析请求并等待回复，超时由 ctx 控制
func (r *RabbitMQ) Call(ctx context.Context, queueName string, req *AnalysisRequestMessage) (*AnalysisReplyMessage, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	if req.SubmittedAt.IsZero() {
		req.SubmittedAt = time.Now()
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("JSON序列化失败: %w", err)
	}

	ctx, span := rabbitTracer.Start(ctx, "rabbitmq.call "+queueName,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "rabbitmq"),
			attribute.String("messaging.destination.name", queueName),
			attribute.String("messaging.message_id", req.RequestID),
			attribute.Int("messaging.message.body.size", len(body)),
		),
	)
	defer span.End()

	// 直接回复要求在同一通道上先消费再发布，每次调用使用独立通道
	ch, err := r.conn.Channel()
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRabbitMQ)
		return nil, fmt.Errorf("创建RabbitMQ通道失败: %w", err)
	}
	defer ch.Close()

	replies, err := ch.Consume(DirectReplyQueue, "", true, true, false, false, nil)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRabbitMQ)
		return nil, fmt.Errorf("订阅回复队列失败: %w", err)
	}

	headers := amqp.Table{}
	otel.GetTextMapPropagator().Inject(ctx, amqpHeaderCarrier(headers))

	pubCtx, cancel := context.WithTimeout(ctx, r.publishTimeout())
	err = ch.PublishWithContext(pubCtx, "", queueName, false, false, amqp.Publishing{
		Headers:       headers,
		DeliveryMode:  amqp.Persistent,
		ContentType:   "application/json",
		CorrelationId: req.RequestID,
		MessageId:     req.RequestID,
		ReplyTo:       DirectReplyQueue,
		Timestamp:     req.SubmittedAt,
		Body:          body,
	})
	cancel()
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRabbitMQ)
		return nil, fmt.Errorf("发布分析请求失败: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			tracing.RecordQueueFailure(span, tracing.QueueFailureReplyTimeout, req.RequestID, ctx.Err().Error())
			return nil, ctx.Err()
		case d, ok := <-replies:
			if !ok {
				tracing.RecordError(span, ErrReplyChannelClosed, tracing.ErrorTypeRabbitMQ)
				return nil, ErrReplyChannelClosed
			}
			if d.CorrelationId != req.RequestID {
				continue
			}
			var reply AnalysisReplyMessage
			if err := json.Unmarshal(d.Body, &reply); err != nil {
				tracing.RecordError(span, err, tracing.ErrorTypeRabbitMQ)
				return nil, fmt.Errorf("解析回复失败: %w", err)
			}
			return &reply, nil
		}
	}
}

// Reply 向请求方发布回复；请求没有 ReplyTo 时直接丢弃
func (r *RabbitMQ) Reply(ctx context.Context, d amqp.Delivery, reply *AnalysisReplyMessage) error {
	if d.ReplyTo == "" {
		return nil
	}
	body, err := json.Marshal(reply)
	if err != nil {
		return fmt.Errorf("JSON序列化失败: %w", err)
	}

	r.publishMutex.Lock()
	defer r.publishMutex.Unlock()

	ch := r.getChannel()
	if ch == nil {
		return fmt.Errorf("无法获取RabbitMQ通道")
	}
	defer r.putChannel(ch)

	pubCtx, cancel := context.WithTimeout(ctx, r.publishTimeout())
	defer cancel()
	return ch.PublishWithContext(pubCtx, "", d.ReplyTo, false, false, amqp.Publishing{
		ContentType:   "application/json",
		CorrelationId: d.CorrelationId,
		Timestamp:     time.Now(),
		Body:          body,
	})
}

// StartConsumer 启动 workers 个协程消费队列，ctx 取消后停止，返回的通道在全部协程退出后关闭
func (r *RabbitMQ) StartConsumer(ctx context.Context, queueName string, prefetchCount, workers int, handler DeliveryHandler) (<-chan struct{}, error) {
	if workers <= 0 {
		workers = 1
	}
	if prefetchCount < workers {
		prefetchCount = workers
	}

	ch, err := r.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("无法获取RabbitMQ通道: %w", err)
	}

	// 设置QoS，控制预取数量
	if err := ch.Qos(prefetchCount, 0, false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("设置QoS失败: %w", err)
	}

	deliveries, err := ch.Consume(
		queueName, // 队列
		"",        // 消费者标签，留空由server生成唯一标签
		false,     // 自动确认
		false,     // 独占
		false,     // 非本地
		false,     // 非阻塞
		nil,       // 参数
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("注册消费者失败: %w", err)
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case d, ok := <-deliveries:
					if !ok {
						log.Printf("RabbitMQ消费通道已关闭 (worker %d)", id)
						return
					}
					r.dispatch(ctx, queueName, d, handler)
				}
			}
		}(i)
	}

	go func() {
		wg.Wait()
		ch.Close()
		log.Printf("RabbitMQ消费者已停止: %s", queueName)
		close(done)
	}()

	log.Printf("RabbitMQ消费者已启动，队列: %s, 预取数量: %d, 并发: %d", queueName, prefetchCount, workers)
	return done, nil
}

func (r *RabbitMQ) dispatch(ctx context.Context, queueName string, d amqp.Delivery, handler DeliveryHandler) {
	// 停止消费不打断进行中的请求
	msgCtx := otel.GetTextMapPropagator().Extract(context.WithoutCancel(ctx), amqpHeaderCarrier(d.Headers))
	msgCtx, span := rabbitTracer.Start(msgCtx, "rabbitmq.consume "+queueName,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "rabbitmq"),
			attribute.String("messaging.source.name", queueName),
			attribute.String("messaging.message_id", d.MessageId),
		),
	)
	defer span.End()

	ack := safeHandle(msgCtx, d, handler)
	if ack {
		if err := d.Ack(false); err != nil {
			log.Printf("确认消息失败: %v", err)
		}
		return
	}
	// 重投递的消息再次失败时不再入队
	requeue := !d.Redelivered
	tracing.RecordQueueFailure(span, tracing.QueueFailureNack, d.MessageId, "handler rejected message")
	if err := d.Nack(false, requeue); err != nil {
		log.Printf("拒绝消息失败: %v", err)
	}
}

func safeHandle(ctx context.Context, d amqp.Delivery, handler DeliveryHandler) (ack bool) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("处理消息时发生panic: %v", rec)
			ack = false
		}
	}()
	return handler(ctx, d)
}

// amqpHeaderCarrier 让 otel 传播器读写 AMQP 消息头
type amqpHeaderCarrier amqp.Table

func (c amqpHeaderCarrier) Get(key string) string {
	v, ok := c[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func (c amqpHeaderCarrier) Set(key, value string) {
	c[key] = value
}

func (c amqpHeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}
