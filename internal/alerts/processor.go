package alerts

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/sudo-init-do/bazaar/internal/logger"
)

// Processor is the asynq worker that turns queued tasks into emails.
type Processor struct {
	server *asynq.Server
	mailer Mailer
}

func NewProcessor(redis asynq.RedisClientOpt, mailer Mailer) *Processor {
	server := asynq.NewServer(redis, asynq.Config{
		Concurrency: 5,
		Queues: map[string]int{
			emailQueue: 10,
		},
		Logger: asynqLogger{},
	})
	return &Processor{server: server, mailer: mailer}
}

// Mux routes every task type to its handler.
func (p *Processor) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskOrderCreated, p.handleOrderEmail)
	mux.HandleFunc(TaskPaymentReceived, p.handleOrderEmail)
	mux.HandleFunc(TaskOrderCancelled, p.handleOrderEmail)
	mux.HandleFunc(TaskMessageNew, p.handleMessageNew)
	return mux
}

// Run processes tasks until ctx is done, then waits for in-flight tasks.
func (p *Processor) Run(ctx context.Context) error {
	if err := p.server.Start(p.Mux()); err != nil {
		return fmt.Errorf("start email worker: %w", err)
	}
	<-ctx.Done()
	p.server.Shutdown()
	return nil
}

func (p *Processor) handleOrderEmail(ctx context.Context, t *asynq.Task) error {
	var pl OrderEmailPayload
	if err := json.Unmarshal(t.Payload(), &pl); err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	if err := p.mailer.Send(ctx, pl.Envelope); err != nil {
		logger.Error("[notify] %s send failed order=%s: %v", t.Type(), pl.OrderID, err)
		return err
	}
	logger.Info("[notify] %s sent -> order=%s to=%s", t.Type(), pl.OrderID, pl.Envelope.To)
	return nil
}

func (p *Processor) handleMessageNew(ctx context.Context, t *asynq.Task) error {
	var pl MessageNewPayload
	if err := json.Unmarshal(t.Payload(), &pl); err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	if err := p.mailer.Send(ctx, pl.Envelope); err != nil {
		logger.Error("[notify] MessageNew send failed message=%s: %v", pl.MessageID, err)
		return err
	}
	logger.Info("[notify] MessageNew sent -> listing=%s to=%s", pl.ListingID, pl.Envelope.To)
	return nil
}

// asynqLogger routes asynq's internal logging through the app logger.
type asynqLogger struct{}

func (asynqLogger) Debug(args ...interface{}) { logger.Debug("asynq: %s", fmt.Sprint(args...)) }
func (asynqLogger) Info(args ...interface{})  { logger.Info("asynq: %s", fmt.Sprint(args...)) }
func (asynqLogger) Warn(args ...interface{})  { logger.Warn("asynq: %s", fmt.Sprint(args...)) }
func (asynqLogger) Error(args ...interface{}) { logger.Error("asynq: %s", fmt.Sprint(args...)) }
func (asynqLogger) Fatal(args ...interface{}) { logger.Error("asynq: %s", fmt.Sprint(args...)) }
