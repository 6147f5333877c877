package mongo

import (
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"transactions/internal/core"
	"transactions/internal/query"
	"transactions/internal/store"
)

// document is the stored shape of a transaction.
type document struct {
	ID          int64   `bson:"_id"`
	Title       string  `bson:"title"`
	Description string  `bson:"description"`
	TitleSearch string  `bson:"titleSearch"`
	DescSearch  string  `bson:"descriptionSearch"`
	Price       float64 `bson:"price"`
	PriceText   string  `bson:"priceText"`
	DateOfSale  string  `bson:"dateOfSale"`
	SaleMonth   int     `bson:"saleMonth"`
	Sold        bool    `bson:"sold"`
	Category    string  `bson:"category"`
	Image       string  `bson:"image,omitempty"`
}

func fromRow(id int64, r store.Row) document {
	return document{
		ID:          id,
		Title:       r.Title,
		Description: r.Description,
		TitleSearch: r.TitleSearch,
		DescSearch:  r.DescriptionSearch,
		Price:       r.Price,
		PriceText:   r.PriceText,
		DateOfSale:  r.DateOfSale,
		SaleMonth:   r.SaleMonth,
		Sold:        r.Sold,
		Category:    r.Category,
		Image:       r.Image,
	}
}

func (d document) toCore() core.Transaction {
	return core.Transaction{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		Price:       d.Price,
		DateOfSale:  d.DateOfSale,
		Sold:        d.Sold,
		Category:    d.Category,
		Image:       d.Image,
	}
}

// filterDoc renders a query.Filter as a find/$match document.
func filterDoc(f query.Filter) bson.D {
	if f.Impossible() {
		return bson.D{{Key: "_id", Value: bson.D{{Key: "$exists", Value: false}}}}
	}

	var and bson.A
	if f.Month != 0 {
		and = append(and, bson.D{{Key: "saleMonth", Value: int(f.Month)}})
	}
	for _, term := range f.Terms {
		re := primitive.Regex{Pattern: regexp.QuoteMeta(query.Fold(term))}
		and = append(and, bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "titleSearch", Value: re}},
			bson.D{{Key: "descriptionSearch", Value: re}},
			bson.D{{Key: "priceText", Value: re}},
		}}})
	}
	if len(and) == 0 {
		return bson.D{}
	}
	return bson.D{{Key: "$and", Value: and}}
}

func matchStage(f query.Filter) bson.D {
	return bson.D{{Key: "$match", Value: filterDoc(f)}}
}

func statisticsPipeline(f query.Filter) bson.A {
	return bson.A{
		matchStage(f),
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: "$price"}}},
			{Key: "sold", Value: bson.D{{Key: "$sum", Value: bson.D{{Key: "$cond", Value: bson.A{"$sold", 1, 0}}}}}},
			{Key: "notSold", Value: bson.D{{Key: "$sum", Value: bson.D{{Key: "$cond", Value: bson.A{"$sold", 0, 1}}}}}},
		}}},
	}
}

// bucketSwitch maps $price to its index in core.PriceBuckets.
func bucketSwitch() bson.D {
	var branches bson.A
	last := len(core.PriceBuckets) - 1
	for i, b := range core.PriceBuckets {
		if b.Open || i == last {
			break
		}
		branches = append(branches, bson.D{
			{Key: "case", Value: bson.D{{Key: "$lte", Value: bson.A{"$price", b.To}}}},
			{Key: "then", Value: i},
		})
	}
	return bson.D{{Key: "$switch", Value: bson.D{
		{Key: "branches", Value: branches},
		{Key: "default", Value: last},
	}}}
}

func histogramPipeline(f query.Filter) bson.A {
	return bson.A{
		matchStage(f),
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bucketSwitch()},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
}

func categoryPipeline(f query.Filter) bson.A {
	return bson.A{
		matchStage(f),
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$category"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
}
