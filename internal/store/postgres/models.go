package postgres

import (
	"time"

	"transactions/internal/core"
	"transactions/internal/store"
)

// Transaction is the gorm model of the transactions table.
type Transaction struct {
	ID          int64   `gorm:"primaryKey;autoIncrement"`
	Title       string  `gorm:"not null"`
	Description string  `gorm:"not null;default:''"`
	TitleSearch string  `gorm:"column:title_search;not null;default:''"`
	DescSearch  string  `gorm:"column:description_search;not null;default:''"`
	Price       float64 `gorm:"not null;default:0"`
	PriceText   string  `gorm:"column:price_text;not null;default:''"`
	DateOfSale  string  `gorm:"column:date_of_sale;not null"`
	SaleMonth   int     `gorm:"column:sale_month;not null;index"`
	Sold        bool    `gorm:"not null;default:false"`
	Category    string  `gorm:"not null;default:'';index"`
	Image       string  `gorm:"not null;default:''"`
	CreatedAt   time.Time
}

func (Transaction) TableName() string {
	return "transactions"
}

func fromRow(r store.Row) Transaction {
	return Transaction{
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

func (m Transaction) toCore() core.Transaction {
	return core.Transaction{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		Price:       m.Price,
		DateOfSale:  m.DateOfSale,
		Sold:        m.Sold,
		Category:    m.Category,
		Image:       m.Image,
	}
}
