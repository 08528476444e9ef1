// confirm-worker auto-confirms pending orders whose confirmation window
// has closed. The countdown in the diner's browser does the same thing for
// its own order; this worker is the backstop for closed tabs and dead
// batteries.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/denizrest/selforder/internal/adapters/pg"
	"github.com/denizrest/selforder/internal/adapters/rabbit"
	"github.com/denizrest/selforder/internal/config"
	"github.com/denizrest/selforder/internal/domain"
	"github.com/denizrest/selforder/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownOtel, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(context.Background(), cfg.PGDSN)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	repo := pg.NewRepository(pool)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()
	rabbitPub, err := rabbit.NewPublisher(conn)
	if err != nil {
		log.Fatalf("failed to create publisher: %v", err)
	}

	worker := NewConfirmWorker(repo, rabbitPub, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go worker.Run(ctx, 30*time.Second)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutdown confirm worker")
}

type ConfirmWorker struct {
	repo      *pg.Repository
	rabbitPub *rabbit.Publisher
	logger    observability.Logger
}

func NewConfirmWorker(repo *pg.Repository, rabbitPub *rabbit.Publisher, logger observability.Logger) *ConfirmWorker {
	return &ConfirmWorker{repo: repo, rabbitPub: rabbitPub, logger: logger}
}

func (w *ConfirmWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			orders, err := w.repo.ExpiredUnconfirmed(ctx, now, 100)
			if err != nil {
				w.logger.Error("failed to scan expired orders", err)
				continue
			}
			for _, order := range orders {
				if err := w.confirmWithRetry(ctx, order); err != nil {
					w.logger.WithField("order_id", order.ID).Error("failed to auto-confirm order after retries", err)
				}
			}
		}
	}
}

func (w *ConfirmWorker) confirmWithRetry(ctx context.Context, order domain.Order) error {
	var lastErr error
	for i := 0; i < 3; i++ {
		err := w.repo.ConfirmOrder(ctx, order.ID, true, time.Now())
		if errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrNotFound) {
			// The diner confirmed or cancelled in the meantime.
			return nil
		}
		if err != nil {
			lastErr = err
			backoff := time.Duration(1<<i) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				continue
			}
		}

		observability.OrdersAutoConfirmed.Inc()

		txErr := w.repo.WithTx(ctx, func(tx pgx.Tx) error {
			payload, _ := json.Marshal(map[string]interface{}{
				"order_id": order.ID,
				"status":   domain.OrderConfirmed,
				"auto":     true,
			})
			return w.repo.InsertOutbox(ctx, tx, pg.OutboxRecord{
				ID:            uuid.New(),
				AggregateType: "order",
				AggregateID:   order.ID,
				EventType:     "order.updated",
				Payload:       payload,
				DedupeKey:     "order.confirmed:" + order.ID.String(),
			})
		})
		if txErr != nil {
			w.logger.WithField("order_id", order.ID).Error("failed to enqueue order.updated event", txErr)
		}
		return nil
	}
	return lastErr
}
