package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/denizrest/selforder/internal/domain"
	"github.com/denizrest/selforder/internal/observability"
)

type AuditLogger struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		coll:   db.Collection("audit_logs"),
		logger: logger,
	}
}

type AuditLog struct {
	ID        uuid.UUID `bson:"_id"`
	Action    string    `bson:"action"`
	Timestamp time.Time `bson:"timestamp"`
	Data      bson.M    `bson:"data"`
}

func (a *AuditLogger) LogEvent(ctx context.Context, action string, data map[string]interface{}) error {
	log := AuditLog{
		ID:        uuid.New(),
		Action:    action,
		Timestamp: time.Now(),
		Data:      bson.M(data),
	}
	_, err := a.coll.InsertOne(ctx, log)
	if err != nil {
		a.logger.Error("failed to insert audit log", err)
		return err
	}
	return nil
}

func (a *AuditLogger) LogOrder(ctx context.Context, order domain.Order) error {
	data := map[string]interface{}{
		"order_id":     order.ID,
		"table_number": order.TableNumber,
		"status":       order.Status,
		"total":        order.Total,
		"items":        len(order.Items),
	}
	return a.LogEvent(ctx, "order.created", data)
}

func (a *AuditLogger) LogStatusChange(ctx context.Context, orderID uuid.UUID, status domain.OrderStatus, auto bool) error {
	data := map[string]interface{}{
		"order_id": orderID,
		"status":   status,
		"auto":     auto,
	}
	return a.LogEvent(ctx, "order.status_changed", data)
}

func (a *AuditLogger) LogWaiterCall(ctx context.Context, call domain.WaiterCall) error {
	data := map[string]interface{}{
		"call_id":      call.ID,
		"table_number": call.TableNumber,
	}
	return a.LogEvent(ctx, "call.created", data)
}
