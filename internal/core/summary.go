package core

import (
	"math"
	"strconv"
)

// Statistics summarises the records of a month.
type Statistics struct {
	TotalSaleAmount float64 `json:"totalSaleAmount"`
	SoldItems       int64   `json:"soldItems"`
	NotSoldItems    int64   `json:"notSoldItems"`
}

// PriceBucket is one bar of the price histogram. From is the nominal lower
// bound shown in the label; membership is decided by BucketIndex.
type PriceBucket struct {
	From int
	To   int
	Open bool
}

// PriceBuckets partitions the price axis: every price <= 100 is in the first
// bucket, 100(k-1) < price <= 100k in bucket k, and price > 900 in the last.
var PriceBuckets = []PriceBucket{
	{From: 0, To: 100},
	{From: 101, To: 200},
	{From: 201, To: 300},
	{From: 301, To: 400},
	{From: 401, To: 500},
	{From: 501, To: 600},
	{From: 601, To: 700},
	{From: 701, To: 800},
	{From: 801, To: 900},
	{From: 901, Open: true},
}

func (b PriceBucket) Label() string {
	if b.Open {
		return strconv.Itoa(b.From) + "-above"
	}
	return strconv.Itoa(b.From) + "-" + strconv.Itoa(b.To)
}

// BucketIndex returns the index in PriceBuckets that holds price.
func BucketIndex(price float64) int {
	for i, b := range PriceBuckets {
		if b.Open || price <= float64(b.To) {
			return i
		}
	}
	return len(PriceBuckets) - 1
}

// BucketCount is one bar of the bar chart.
type BucketCount struct {
	Range string `json:"range"`
	Count int64  `json:"count"`
}

// NewHistogram returns the bar chart with every bucket at zero.
func NewHistogram() []BucketCount {
	out := make([]BucketCount, len(PriceBuckets))
	for i, b := range PriceBuckets {
		out[i] = BucketCount{Range: b.Label()}
	}
	return out
}

// CategoryCount is one slice of the pie chart.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

// Combined bundles every view of one month.
type Combined struct {
	Transactions []Transaction   `json:"transactions"`
	Statistics   Statistics      `json:"statistics"`
	BarChart     []BucketCount   `json:"barChart"`
	PieChart     []CategoryCount `json:"pieChart"`
}

// RoundCents rounds an amount to two decimal places.
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
