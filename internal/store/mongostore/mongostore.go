// Package mongostore keeps list items in a MongoDB collection.
//
// Live queries re-read the whole list on every change signal. Signals come
// from a change stream on the collection (needs a replica set) or, when a
// store.Notifier is configured, from the notifier; in that mode every
// mutation publishes to it.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/idilsaglam/shoplist/internal/model"
	"github.com/idilsaglam/shoplist/internal/store"
)

const indexName = "idx_items_list_category_name"

type itemDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Name      string             `bson:"name"`
	Category  string             `bson:"category"`
	Completed bool               `bson:"completed"`
	Quantity  int                `bson:"quantity"`
	ListCode  string             `bson:"list_code"`
	OwnerID   string             `bson:"owner_id"`
	CreatedAt time.Time          `bson:"created_at"`
}

func (d itemDoc) toModel() model.Item {
	return model.Item{
		ID:        d.ID.Hex(),
		Name:      d.Name,
		Category:  model.Category(d.Category),
		Completed: d.Completed,
		Quantity:  d.Quantity,
		ListCode:  d.ListCode,
		OwnerID:   d.OwnerID,
		CreatedAt: d.CreatedAt,
	}
}

// Store provides access to the items collection.
type Store struct {
	client *mongo.Client
	c      *mongo.Collection
	notify store.Notifier // nil: use change streams
	log    *zap.Logger
}

var _ store.ListStore = (*Store)(nil)

// Connect dials uri and verifies connectivity.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// New wraps an existing client. notify may be nil.
func New(client *mongo.Client, database, collection string, notify store.Notifier, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		client: client,
		c:      client.Database(database).Collection(collection),
		notify: notify,
		log:    log,
	}
}

// EnsureIndexes creates the index backing the live query. Idempotent.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.c.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "list_code", Value: 1}, {Key: "category", Value: 1}, {Key: "name", Value: 1}},
		Options: options.Index().SetName(indexName),
	})
	if err != nil {
		return fmt.Errorf("ensure %s: %w", indexName, err)
	}
	return nil
}

func (s *Store) Watch(ctx context.Context, code string) (<-chan store.Snapshot, error) {
	ctx, cancel := context.WithCancel(ctx)

	// open the change source first so nothing between it and the first read is lost
	signals, err := s.changes(ctx, code)
	if err != nil {
		cancel()
		return nil, err
	}

	out := make(chan store.Snapshot, 1)
	go func() {
		defer close(out)
		defer cancel()
		for {
			items, err := s.list(ctx, code)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				offer(out, store.Snapshot{Err: err})
				return
			}
			offer(out, store.Snapshot{Items: items})

			select {
			case <-ctx.Done():
				return
			case err, ok := <-signals:
				if !ok {
					return
				}
				if err != nil {
					offer(out, store.Snapshot{Err: err})
					return
				}
			}
		}
	}()
	return out, nil
}

// offer replaces any unread snapshot; the reader only needs the newest.
func offer(ch chan store.Snapshot, snap store.Snapshot) {
	select {
	case <-ch:
	default:
	}
	ch <- snap
}

// changes yields nil per change and a final error if the source fails.
func (s *Store) changes(ctx context.Context, code string) (<-chan error, error) {
	out := make(chan error, 1)

	if s.notify != nil {
		sig, err := s.notify.Subscribe(ctx, code)
		if err != nil {
			return nil, err
		}
		go func() {
			defer close(out)
			for range sig {
				signal(ctx, out, nil)
			}
		}()
		return out, nil
	}

	// deletes carry no full document, so every delete triggers a re-read
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"$or": bson.A{
			bson.M{"fullDocument.list_code": code},
			bson.M{"operationType": "delete"},
		}}}},
	}
	cs, err := s.c.Watch(ctx, pipeline, options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", code, err)
	}
	go func() {
		defer close(out)
		defer cs.Close(context.Background())
		for cs.Next(ctx) {
			signal(ctx, out, nil)
		}
		if err := cs.Err(); err != nil && ctx.Err() == nil {
			s.log.Warn("change stream ended", zap.String("list_code", code), zap.Error(err))
			signal(ctx, out, fmt.Errorf("change stream: %w", err))
		}
	}()
	return out, nil
}

func signal(ctx context.Context, ch chan error, err error) {
	if err == nil {
		select {
		case ch <- nil:
		default: // a re-read is already pending
		}
		return
	}
	select {
	case ch <- err:
	case <-ctx.Done():
	}
}

func (s *Store) list(ctx context.Context, code string) ([]model.Item, error) {
	opts := options.Find().SetSort(bson.D{{Key: "category", Value: 1}, {Key: "name", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"list_code": code}, opts)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", code, err)
	}
	defer cur.Close(ctx)

	var docs []itemDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", code, err)
	}
	items := make([]model.Item, 0, len(docs))
	for _, d := range docs {
		items = append(items, d.toModel())
	}
	return items, nil
}

func (s *Store) Add(ctx context.Context, item model.Item) (string, error) {
	doc := itemDoc{
		ID:        primitive.NewObjectID(),
		Name:      item.Name,
		Category:  string(item.Category),
		Completed: item.Completed,
		Quantity:  item.Quantity,
		ListCode:  item.ListCode,
		OwnerID:   item.OwnerID,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.c.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("insert item: %w", err)
	}
	s.publish(ctx, doc.ListCode)
	return doc.ID.Hex(), nil
}

func (s *Store) Update(ctx context.Context, id string, p model.Patch) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return store.ErrNotFound
	}
	set := bson.M{}
	if p.Completed != nil {
		set["completed"] = *p.Completed
	}
	if p.Quantity != nil {
		set["quantity"] = *p.Quantity
	}
	if len(set) == 0 {
		return nil
	}

	var doc itemDoc
	opts := options.FindOneAndUpdate().SetProjection(bson.M{"list_code": 1})
	err = s.c.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update item %s: %w", id, err)
	}
	s.publish(ctx, doc.ListCode)
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return store.ErrNotFound
	}
	var doc itemDoc
	opts := options.FindOneAndDelete().SetProjection(bson.M{"list_code": 1})
	err = s.c.FindOneAndDelete(ctx, bson.M{"_id": oid}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete item %s: %w", id, err)
	}
	s.publish(ctx, doc.ListCode)
	return nil
}

// publish is best effort; the write has already happened.
func (s *Store) publish(ctx context.Context, code string) {
	if s.notify == nil {
		return
	}
	if err := s.notify.Publish(ctx, code); err != nil {
		s.log.Warn("publish change", zap.String("list_code", code), zap.Error(err))
	}
}

func (s *Store) Close(ctx context.Context) error {
	var errs []error
	if s.notify != nil {
		errs = append(errs, s.notify.Close())
	}
	errs = append(errs, s.client.Disconnect(ctx))
	return errors.Join(errs...)
}
