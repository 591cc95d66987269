package repository

import (
	"context"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rpr91/Malandros/models"
)

const menuCollection = "menu_items"

// MenuRepository defines data access for the menu catalogue.
type MenuRepository interface {
	FindAvailable(ctx context.Context) ([]models.MenuItem, error)
	FindByCategory(ctx context.Context, category string) ([]models.MenuItem, error)
	Categories(ctx context.Context) ([]string, error)
	FindByID(ctx context.Context, id string) (*models.MenuItem, error)
	Create(ctx context.Context, item *models.MenuItem) error
	Update(ctx context.Context, id string, fields bson.M) (*models.MenuItem, error)
	SoftDelete(ctx context.Context, id string) error
}

type MongoMenuRepository struct {
	collection *mongo.Collection
}

func NewMongoMenuRepository(db *mongo.Database) MenuRepository {
	return &MongoMenuRepository{collection: db.Collection(menuCollection)}
}

// live matches items that have not been soft-deleted.
func live(filter bson.M) bson.M {
	filter["deleted_at"] = bson.M{"$exists": false}
	return filter
}

func (r *MongoMenuRepository) find(ctx context.Context, filter bson.M) ([]models.MenuItem, error) {
	opts := options.Find().SetSort(bson.D{{Key: "category", Value: 1}, {Key: "name", Value: 1}})
	cursor, err := r.collection.Find(ctx, live(filter), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]models.MenuItem, 0)
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *MongoMenuRepository) FindAvailable(ctx context.Context) ([]models.MenuItem, error) {
	return r.find(ctx, bson.M{"available": true})
}

func (r *MongoMenuRepository) FindByCategory(ctx context.Context, category string) ([]models.MenuItem, error) {
	return r.find(ctx, bson.M{"available": true, "category": category})
}

// Categories returns the distinct categories of available items, sorted.
func (r *MongoMenuRepository) Categories(ctx context.Context) ([]string, error) {
	values, err := r.collection.Distinct(ctx, "category", live(bson.M{"available": true}))
	if err != nil {
		return nil, err
	}

	categories := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok && s != "" {
			categories = append(categories, s)
		}
	}
	sort.Strings(categories)
	return categories, nil
}

func (r *MongoMenuRepository) FindByID(ctx context.Context, id string) (*models.MenuItem, error) {
	var item models.MenuItem
	if err := r.collection.FindOne(ctx, live(bson.M{"_id": id})).Decode(&item); err != nil {
		return nil, translate(err)
	}
	return &item, nil
}

func (r *MongoMenuRepository) Create(ctx context.Context, item *models.MenuItem) error {
	_, err := r.collection.InsertOne(ctx, item)
	return err
}

// Update applies fields and returns the updated document.
func (r *MongoMenuRepository) Update(ctx context.Context, id string, fields bson.M) (*models.MenuItem, error) {
	fields["updated_at"] = time.Now().UTC()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var item models.MenuItem
	err := r.collection.FindOneAndUpdate(ctx, live(bson.M{"_id": id}), bson.M{"$set": fields}, opts).Decode(&item)
	if err != nil {
		return nil, translate(err)
	}
	return &item, nil
}

// SoftDelete stamps deleted_at and hides the item from the menu.
func (r *MongoMenuRepository) SoftDelete(ctx context.Context, id string) error {
	now := time.Now().UTC()
	result, err := r.collection.UpdateOne(ctx, live(bson.M{"_id": id}), bson.M{
		"$set": bson.M{"deleted_at": now, "available": false, "updated_at": now},
	})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
