// Package store holds the Mongo-backed collections: raw quotes keyed by
// symbol, summaries keyed by stock code, and the single credential row.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trandminh/quote-ingest/internal/auth"
	"github.com/trandminh/quote-ingest/internal/quotes"
)

const (
	quoteCollection      = "dnsequotes"
	summaryCollection    = "mainquotes"
	credentialCollection = "auths"
)

// Connect opens a Mongo client and verifies the link with a ping.
func Connect(ctx context.Context, url string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(url))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// Quotes persists raw wire quotes, one document per symbol.
type Quotes struct {
	coll *mongo.Collection
}

func NewQuotes(db *mongo.Database) *Quotes {
	return &Quotes{coll: db.Collection(quoteCollection)}
}

func (s *Quotes) Upsert(ctx context.Context, symbol string, q *quotes.Quote) error {
	update := bson.M{
		"$set":         q,
		"$currentDate": bson.M{"updatedAt": true},
	}
	_, err := s.coll.UpdateOne(ctx, bson.M{"symbol": symbol}, update, options.Update().SetUpsert(true))
	return err
}

func (s *Quotes) FindBySymbol(ctx context.Context, symbol string) (*quotes.Quote, error) {
	var q quotes.Quote
	err := s.coll.FindOne(ctx, bson.M{"symbol": symbol}).Decode(&q)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// Summaries persists derived summaries, one document per stock code.
type Summaries struct {
	coll *mongo.Collection
}

func NewSummaries(db *mongo.Database) *Summaries {
	return &Summaries{coll: db.Collection(summaryCollection)}
}

func (s *Summaries) Upsert(ctx context.Context, code string, sum *quotes.Summary) error {
	update := bson.M{
		"$set":         sum,
		"$currentDate": bson.M{"updatedAt": true},
	}
	_, err := s.coll.UpdateOne(ctx, bson.M{"StockCode": code}, update, options.Update().SetUpsert(true))
	return err
}

func (s *Summaries) FindByStockCode(ctx context.Context, code string) (*quotes.Summary, error) {
	var sum quotes.Summary
	err := s.coll.FindOne(ctx, bson.M{"StockCode": code}).Decode(&sum)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sum, nil
}

// FindByMarket pages summaries for one market, sorted by stock code.
func (s *Summaries) FindByMarket(ctx context.Context, marketID string, page, pageSize int) ([]quotes.Summary, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "StockCode", Value: 1}}).
		SetSkip(int64((page - 1) * pageSize)).
		SetLimit(int64(pageSize))
	cursor, err := s.coll.Find(ctx, bson.M{"MarketID": marketID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]quotes.Summary, 0, pageSize)
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Summaries) CountByMarket(ctx context.Context, marketID string) (int64, error) {
	return s.coll.CountDocuments(ctx, bson.M{"MarketID": marketID})
}

// Credentials keeps the one warm-cached credential across restarts.
type Credentials struct {
	coll *mongo.Collection
}

func NewCredentials(db *mongo.Database) *Credentials {
	return &Credentials{coll: db.Collection(credentialCollection)}
}

func (s *Credentials) Get(ctx context.Context) (*auth.Credential, error) {
	var cred auth.Credential
	err := s.coll.FindOne(ctx, bson.M{}).Decode(&cred)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

func (s *Credentials) Put(ctx context.Context, cred *auth.Credential) error {
	_, err := s.coll.UpdateOne(ctx, bson.M{}, bson.M{"$set": cred}, options.Update().SetUpsert(true))
	return err
}
