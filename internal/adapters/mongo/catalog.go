// Package mongo holds the menu catalog (categories, dishes, banners) and
// the settings document. Menu content is localized per document; filtering
// and search run server-side.
package mongo

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/denizrest/selforder/internal/domain"
	"github.com/denizrest/selforder/internal/observability"
)

type CatalogRepository struct {
	categories *mongo.Collection
	dishes     *mongo.Collection
	logger     observability.Logger
}

func NewCatalogRepository(db *mongo.Database, logger observability.Logger) *CatalogRepository {
	return &CatalogRepository{
		categories: db.Collection("categories"),
		dishes:     db.Collection("dishes"),
		logger:     logger,
	}
}

type CategoryDoc struct {
	ID        uuid.UUID            `bson:"_id"`
	Name      domain.LocalizedText `bson:"name"`
	SortOrder int                  `bson:"sort_order"`
	Active    bool                 `bson:"active"`
	CreatedAt time.Time            `bson:"created_at"`
	UpdatedAt time.Time            `bson:"updated_at"`
}

type DishDoc struct {
	ID          uuid.UUID            `bson:"_id"`
	CategoryID  uuid.UUID            `bson:"category_id"`
	Name        domain.LocalizedText `bson:"name"`
	Description domain.LocalizedText `bson:"description"`
	Price       float64              `bson:"price"`
	ImageURL    string               `bson:"image_url"`
	Available   bool                 `bson:"available"`
	SortOrder   int                  `bson:"sort_order"`
	CreatedAt   time.Time            `bson:"created_at"`
	UpdatedAt   time.Time            `bson:"updated_at"`
}

type MenuFilter struct {
	CategoryID *uuid.UUID
	Search     string
	Language   string
}

// Dish returns a single dish by id; the cart validates additions against it.
func (c *CatalogRepository) Dish(ctx context.Context, id uuid.UUID) (*domain.Dish, error) {
	var doc DishDoc
	err := c.dishes.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		c.logger.Error("failed to get dish", err)
		return nil, err
	}
	dish := doc.toDomain()
	return &dish, nil
}

// Categories returns active categories in sort order with their dish counts.
func (c *CatalogRepository) Categories(ctx context.Context) ([]domain.Category, error) {
	opts := options.Find().SetSort(bson.D{{Key: "sort_order", Value: 1}})
	cursor, err := c.categories.Find(ctx, bson.M{"active": true}, opts)
	if err != nil {
		c.logger.Error("failed to list categories", err)
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []CategoryDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	counts, err := c.dishCounts(ctx)
	if err != nil {
		return nil, err
	}

	categories := make([]domain.Category, 0, len(docs))
	for _, doc := range docs {
		categories = append(categories, domain.Category{
			ID:        doc.ID,
			Name:      doc.Name,
			SortOrder: doc.SortOrder,
			Active:    doc.Active,
			DishCount: counts[doc.ID],
		})
	}
	return categories, nil
}

func (c *CatalogRepository) dishCounts(ctx context.Context) (map[uuid.UUID]int, error) {
	cursor, err := c.dishes.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"available": true}}},
		{{Key: "$group", Value: bson.M{"_id": "$category_id", "count": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	counts := make(map[uuid.UUID]int)
	for cursor.Next(ctx) {
		var row struct {
			ID    uuid.UUID `bson:"_id"`
			Count int       `bson:"count"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, err
		}
		counts[row.ID] = row.Count
	}
	return counts, cursor.Err()
}

// Dishes lists available dishes, optionally narrowed to one category.
// Search matches the localized name and description case-insensitively in
// the requested language, falling back to Russian like the rest of the UI.
func (c *CatalogRepository) Dishes(ctx context.Context, filter MenuFilter) ([]domain.Dish, error) {
	query := bson.M{"available": true}
	if filter.CategoryID != nil {
		query["category_id"] = *filter.CategoryID
	}

	opts := options.Find().SetSort(bson.D{{Key: "sort_order", Value: 1}})
	cursor, err := c.dishes.Find(ctx, query, opts)
	if err != nil {
		c.logger.Error("failed to list dishes", err)
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []DishDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	dishes := make([]domain.Dish, 0, len(docs))
	needle := strings.ToLower(strings.TrimSpace(filter.Search))
	for _, doc := range docs {
		if needle != "" && !matchesSearch(doc, filter.Language, needle) {
			continue
		}
		dishes = append(dishes, doc.toDomain())
	}

	sort.SliceStable(dishes, func(i, j int) bool {
		return dishes[i].SortOrder < dishes[j].SortOrder
	})
	return dishes, nil
}

func matchesSearch(doc DishDoc, lang, needle string) bool {
	name := strings.ToLower(doc.Name.Get(lang))
	desc := strings.ToLower(doc.Description.Get(lang))
	return strings.Contains(name, needle) || strings.Contains(desc, needle)
}

func (doc DishDoc) toDomain() domain.Dish {
	return domain.Dish{
		ID:          doc.ID,
		CategoryID:  doc.CategoryID,
		Name:        doc.Name,
		Description: doc.Description,
		Price:       doc.Price,
		ImageURL:    doc.ImageURL,
		Available:   doc.Available,
		SortOrder:   doc.SortOrder,
	}
}

func (c *CatalogRepository) UpsertCategory(ctx context.Context, doc CategoryDoc) error {
	doc.UpdatedAt = time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = doc.UpdatedAt
	}
	_, err := c.categories.UpdateOne(ctx,
		bson.M{"_id": doc.ID},
		bson.M{"$set": doc},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		c.logger.Error("failed to upsert category", err)
	}
	return err
}

func (c *CatalogRepository) UpsertDish(ctx context.Context, doc DishDoc) error {
	doc.UpdatedAt = time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = doc.UpdatedAt
	}
	_, err := c.dishes.UpdateOne(ctx,
		bson.M{"_id": doc.ID},
		bson.M{"$set": doc},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		c.logger.Error("failed to upsert dish", err)
	}
	return err
}

func (c *CatalogRepository) SetDishAvailability(ctx context.Context, id uuid.UUID, available bool) error {
	_, err := c.dishes.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"available": available, "updated_at": time.Now()}},
	)
	if err != nil {
		c.logger.Error("failed to update dish availability", err)
	}
	return err
}
