// Package mongo is a MongoDB record store; aggregations run as pipelines.
package mongo

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"transactions/internal/core"
	"transactions/internal/query"
	"transactions/internal/store"
)

const collectionName = "transactions"

type Repository struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// Ensure interface conformance
var _ store.Store = (*Repository)(nil)

// NewRepository connects to uri and ensures the month index exists.
func NewRepository(ctx context.Context, uri, database string) (*Repository, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	coll := client.Database(database).Collection(collectionName)
	_, err = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "saleMonth", Value: 1}}},
		{Keys: bson.D{{Key: "category", Value: 1}}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("create indexes: %w", err)
	}

	return &Repository{client: client, coll: coll}, nil
}

func (r *Repository) Close() error {
	return r.client.Disconnect(context.Background())
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, nil)
}

// ReplaceAll validates the batch, then deletes and inserts. Without a
// replica set there is no multi-document transaction, so a failed insert
// can leave the collection partially filled.
func (r *Repository) ReplaceAll(ctx context.Context, txs []core.Transaction) (int, error) {
	rows, err := store.NewRows(txs)
	if err != nil {
		return 0, err
	}

	docs := make([]any, len(rows))
	for i, row := range rows {
		docs[i] = fromRow(int64(i+1), row)
	}

	if _, err := r.coll.DeleteMany(ctx, bson.D{}); err != nil {
		return 0, fmt.Errorf("delete transactions: %w", err)
	}
	if len(docs) > 0 {
		if _, err := r.coll.InsertMany(ctx, docs); err != nil {
			return 0, fmt.Errorf("insert transactions: %w", err)
		}
	}

	slog.InfoContext(ctx, "Transactions replaced in MongoDB", "rows", len(docs))
	return len(docs), nil
}

func (r *Repository) List(ctx context.Context, f query.Filter, p query.Page) ([]core.Transaction, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if p.Paginated() {
		opts.SetSkip(int64(p.Offset())).SetLimit(int64(p.Limit()))
	}

	cur, err := r.coll.Find(ctx, filterDoc(f), opts)
	if err != nil {
		return nil, fmt.Errorf("find transactions: %w", err)
	}
	var docs []document
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode transactions: %w", err)
	}

	out := make([]core.Transaction, len(docs))
	for i, d := range docs {
		out[i] = d.toCore()
	}
	return out, nil
}

func (r *Repository) Count(ctx context.Context, f query.Filter) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, filterDoc(f))
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

func (r *Repository) Statistics(ctx context.Context, f query.Filter) (core.Statistics, error) {
	var out []struct {
		Total   float64 `bson:"total"`
		Sold    int64   `bson:"sold"`
		NotSold int64   `bson:"notSold"`
	}
	if err := r.aggregate(ctx, statisticsPipeline(f), &out); err != nil {
		return core.Statistics{}, fmt.Errorf("aggregate statistics: %w", err)
	}
	if len(out) == 0 {
		return core.Statistics{}, nil
	}
	return core.Statistics{
		TotalSaleAmount: out[0].Total,
		SoldItems:       out[0].Sold,
		NotSoldItems:    out[0].NotSold,
	}, nil
}

func (r *Repository) PriceHistogram(ctx context.Context, f query.Filter) ([]core.BucketCount, error) {
	var out []struct {
		Bucket int   `bson:"_id"`
		Count  int64 `bson:"count"`
	}
	if err := r.aggregate(ctx, histogramPipeline(f), &out); err != nil {
		return nil, fmt.Errorf("aggregate price histogram: %w", err)
	}

	h := core.NewHistogram()
	for _, b := range out {
		if b.Bucket < 0 || b.Bucket >= len(h) {
			return nil, fmt.Errorf("bucket index %d out of range", b.Bucket)
		}
		h[b.Bucket].Count = b.Count
	}
	return h, nil
}

func (r *Repository) CategoryBreakdown(ctx context.Context, f query.Filter) ([]core.CategoryCount, error) {
	var out []struct {
		Category string `bson:"_id"`
		Count    int64  `bson:"count"`
	}
	if err := r.aggregate(ctx, categoryPipeline(f), &out); err != nil {
		return nil, fmt.Errorf("aggregate categories: %w", err)
	}

	res := make([]core.CategoryCount, len(out))
	for i, c := range out {
		res[i] = core.CategoryCount{Category: c.Category, Count: c.Count}
	}
	return res, nil
}

func (r *Repository) aggregate(ctx context.Context, pipeline bson.A, out any) error {
	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return err
	}
	return cur.All(ctx, out)
}
