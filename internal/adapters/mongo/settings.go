package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/denizrest/selforder/internal/observability"
)

// SettingsDoc is the single restaurant settings document. Missing fields
// fall back to the defaults below so a fresh database behaves sensibly.
type SettingsDoc struct {
	ID                   string    `bson:"_id"`
	ServiceChargePercent float64   `bson:"service_charge_percent"`
	ServiceChargeEnabled bool      `bson:"service_charge_enabled"`
	OrderCancelTimeout   int       `bson:"order_cancel_timeout"`
	Languages            []string  `bson:"languages"`
	DefaultLanguage      string    `bson:"default_language"`
	TablePINEnabled      bool      `bson:"table_pin_enabled"`
	Currency             string    `bson:"currency"`
	UpdatedAt            time.Time `bson:"updated_at"`
}

const settingsDocID = "restaurant"

func defaultSettings() SettingsDoc {
	return SettingsDoc{
		ID:                   settingsDocID,
		ServiceChargePercent: 5,
		ServiceChargeEnabled: true,
		OrderCancelTimeout:   300,
		Languages:            []string{"ru", "tk", "en"},
		DefaultLanguage:      "ru",
		Currency:             "TMT",
	}
}

type SettingsRepository struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewSettingsRepository(db *mongo.Database, logger observability.Logger) *SettingsRepository {
	return &SettingsRepository{
		coll:   db.Collection("settings"),
		logger: logger,
	}
}

func (s *SettingsRepository) Get(ctx context.Context) (*SettingsDoc, error) {
	var doc SettingsDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": settingsDocID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		defaults := defaultSettings()
		return &defaults, nil
	}
	if err != nil {
		s.logger.Error("failed to get settings", err)
		return nil, err
	}
	if len(doc.Languages) == 0 {
		doc.Languages = []string{"ru", "tk", "en"}
	}
	if doc.DefaultLanguage == "" {
		doc.DefaultLanguage = "ru"
	}
	if doc.Currency == "" {
		doc.Currency = "TMT"
	}
	if doc.OrderCancelTimeout <= 0 {
		doc.OrderCancelTimeout = 300
	}
	return &doc, nil
}

func (s *SettingsRepository) Update(ctx context.Context, doc SettingsDoc) error {
	doc.ID = settingsDocID
	doc.UpdatedAt = time.Now()
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": settingsDocID},
		bson.M{"$set": doc},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		s.logger.Error("failed to update settings", err)
	}
	return err
}
