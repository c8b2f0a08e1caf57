package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"slides/internal/domain"
)

const mongoDecks = "decks"

// MongoDeckStore keeps each deck as a single document holding its slides.
// Revisions, export jobs and settings stay in the SQL DB.
type MongoDeckStore struct {
	client  *mongo.Client
	db      *mongo.Database
	timeout time.Duration
}

var _ domain.DeckRepository = (*MongoDeckStore)(nil)

type mongoDeck struct {
	ID        string         `bson:"_id"`
	Name      string         `bson:"name"`
	Slides    []domain.Slide `bson:"slides"`
	CreatedAt time.Time      `bson:"createdAt"`
	UpdatedAt time.Time      `bson:"updatedAt"`
}

func (d mongoDeck) toDomain() domain.Deck {
	return domain.Deck{
		ID:         d.ID,
		Name:       d.Name,
		SlideCount: len(d.Slides),
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

// MongoURI builds a connection string from server settings. A host that is
// already a mongodb:// or mongodb+srv:// URI is used as is, with any
// <password> placeholder filled in.
func MongoURI(c ServerConfig) string {
	if strings.HasPrefix(c.Host, "mongodb://") || strings.HasPrefix(c.Host, "mongodb+srv://") {
		if c.Password == "" {
			return c.Host
		}
		uri := strings.ReplaceAll(c.Host, "<password>", c.Password)
		return strings.ReplaceAll(uri, "<db_password>", c.Password)
	}
	port := c.Port
	if port == 0 {
		port = 27017
	}
	if c.User != "" {
		return fmt.Sprintf("mongodb://%s:%s@%s:%d", c.User, c.Password, c.Host, port)
	}
	return fmt.Sprintf("mongodb://%s:%d", c.Host, port)
}

// NewMongoDeckStore connects and pings the server.
func NewMongoDeckStore(ctx context.Context, cfg ServerConfig) (*MongoDeckStore, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(MongoURI(cfg)))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	dbName := cfg.Database
	if dbName == "" {
		dbName = "slides"
	}
	return &MongoDeckStore{client: client, db: client.Database(dbName), timeout: 10 * time.Second}, nil
}

func (s *MongoDeckStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoDeckStore) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

func (s *MongoDeckStore) coll() *mongo.Collection {
	return s.db.Collection(mongoDecks)
}

func (s *MongoDeckStore) CreateDeck(d *domain.Deck) error {
	ctx, cancel := s.ctx()
	defer cancel()

	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now
	_, err := s.coll().InsertOne(ctx, mongoDeck{
		ID: d.ID, Name: d.Name, Slides: []domain.Slide{}, CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		return fmt.Errorf("insert deck: %w", err)
	}
	return nil
}

func (s *MongoDeckStore) find(id string) (*mongoDeck, error) {
	ctx, cancel := s.ctx()
	defer cancel()

	var doc mongoDeck
	err := s.coll().FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("get deck %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get deck: %w", err)
	}
	return &doc, nil
}

func (s *MongoDeckStore) GetDeck(id string) (*domain.Deck, error) {
	doc, err := s.find(id)
	if err != nil {
		return nil, err
	}
	d := doc.toDomain()
	return &d, nil
}

func (s *MongoDeckStore) ListDecks() ([]domain.Deck, error) {
	ctx, cancel := s.ctx()
	defer cancel()

	cursor, err := s.coll().Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list decks: %w", err)
	}
	defer cursor.Close(ctx)

	decks := []domain.Deck{}
	for cursor.Next(ctx) {
		var doc mongoDeck
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode deck: %w", err)
		}
		decks = append(decks, doc.toDomain())
	}
	return decks, cursor.Err()
}

func (s *MongoDeckStore) UpdateDeck(d *domain.Deck) error {
	ctx, cancel := s.ctx()
	defer cancel()

	d.UpdatedAt = time.Now().UTC()
	_, err := s.coll().UpdateOne(ctx, bson.M{"_id": d.ID},
		bson.M{"$set": bson.M{"name": d.Name, "updatedAt": d.UpdatedAt}})
	return err
}

func (s *MongoDeckStore) DeleteDeck(id string) error {
	ctx, cancel := s.ctx()
	defer cancel()

	_, err := s.coll().DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (s *MongoDeckStore) LoadSlides(deckID string) ([]domain.Slide, error) {
	doc, err := s.find(deckID)
	if err != nil {
		return nil, err
	}
	for i := range doc.Slides {
		if doc.Slides[i].Elements == nil {
			doc.Slides[i].Elements = []domain.Element{}
		}
	}
	return doc.Slides, nil
}

func (s *MongoDeckStore) ReplaceSlides(deckID string, slides []domain.Slide) error {
	ctx, cancel := s.ctx()
	defer cancel()

	res, err := s.coll().UpdateOne(ctx, bson.M{"_id": deckID},
		bson.M{"$set": bson.M{"slides": slides, "updatedAt": time.Now().UTC()}})
	if err != nil {
		return fmt.Errorf("replace slides: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("replace slides %s: %w", deckID, ErrNotFound)
	}
	return nil
}
