package storage

import (
	"context"
	"time"

	"github.com/yanun0323/errors"
	"gorm.io/gorm"

	"main/internal/order"
	"main/pkg/conn"
)

const (
	CollectionOrders = "orders"
	CollectionFills  = "fills"
)

// Store is the save/find persistence capability. The engine treats it
// as fire-and-forget: failures are logged by the caller, never turned
// into order failures.
type Store interface {
	Save(ctx context.Context, collection string, record any) error
	Find(ctx context.Context, collection string, query map[string]any, limit int, out any) error
}

// OrderRecord is the persisted form of an order.
type OrderRecord struct {
	ID           uint   `gorm:"primaryKey"`
	OrderID      string `gorm:"index;size:36"`
	VenueOrderID string `gorm:"size:36"`
	Symbol       string `gorm:"index;size:32"`
	Side         string `gorm:"size:8"`
	Type         string `gorm:"size:8"`
	Price        float64
	Quantity     int64
	StrategyID   string `gorm:"index;size:64"`
	Status       string `gorm:"size:16"`
	FilledQty    int64
	AvgFillPrice float64
	Commission   float64
	CreateTime   time.Time
	UpdateTime   time.Time
	RecordedAt   time.Time `gorm:"autoCreateTime"`
}

func (OrderRecord) TableName() string { return CollectionOrders }

// FillRecord is the persisted form of a fill delta observed during
// reconciliation.
type FillRecord struct {
	ID           uint   `gorm:"primaryKey"`
	OrderID      string `gorm:"index;size:36"`
	Symbol       string `gorm:"index;size:32"`
	Side         string `gorm:"size:8"`
	FilledQty    int64
	AvgFillPrice float64
	Commission   float64
	StrategyID   string    `gorm:"size:64"`
	RecordedAt   time.Time `gorm:"autoCreateTime"`
}

func (FillRecord) TableName() string { return CollectionFills }

// RecordFromOrder maps an order snapshot onto its persisted form.
func RecordFromOrder(o *order.Order) *OrderRecord {
	return &OrderRecord{
		OrderID:      o.ID,
		VenueOrderID: o.VenueOrderID,
		Symbol:       o.Symbol,
		Side:         o.Side.String(),
		Type:         o.Type.String(),
		Price:        o.Price,
		Quantity:     o.Quantity,
		StrategyID:   o.StrategyID,
		Status:       o.Status.String(),
		FilledQty:    o.FilledQty,
		AvgFillPrice: o.AvgFillPrice,
		Commission:   o.Commission,
		CreateTime:   o.CreateTime,
		UpdateTime:   o.UpdateTime,
	}
}

// FillFromOrder maps the filled state of an order onto a fill record.
func FillFromOrder(o *order.Order) *FillRecord {
	return &FillRecord{
		OrderID:      o.ID,
		Symbol:       o.Symbol,
		Side:         o.Side.String(),
		FilledQty:    o.FilledQty,
		AvgFillPrice: o.AvgFillPrice,
		Commission:   o.Commission,
		StrategyID:   o.StrategyID,
	}
}

// PG persists records to PostgreSQL through gorm.
type PG struct {
	db *gorm.DB
}

// NewPG migrates the schema and returns a store backed by the client.
func NewPG(client *conn.Client) (*PG, error) {
	db := client.DB()
	if err := db.AutoMigrate(&OrderRecord{}, &FillRecord{}); err != nil {
		return nil, errors.Wrap(err, "migrate storage schema")
	}
	return &PG{db: db}, nil
}

// Save inserts a record into the named collection.
func (s *PG) Save(ctx context.Context, collection string, record any) error {
	switch collection {
	case CollectionOrders, CollectionFills:
		return s.db.WithContext(ctx).Table(collection).Create(record).Error
	default:
		return errors.Wrap(ErrUnknownCollection, collection)
	}
}

// Find loads up to limit records matching the equality query into out.
func (s *PG) Find(ctx context.Context, collection string, query map[string]any, limit int, out any) error {
	switch collection {
	case CollectionOrders, CollectionFills:
	default:
		return errors.Wrap(ErrUnknownCollection, collection)
	}
	if limit <= 0 {
		limit = 100
	}
	tx := s.db.WithContext(ctx).Table(collection)
	if len(query) > 0 {
		tx = tx.Where(query)
	}
	return tx.Limit(limit).Order("id desc").Find(out).Error
}

// Nop discards every record; used when persistence is disabled.
type Nop struct{}

func (Nop) Save(context.Context, string, any) error { return nil }

func (Nop) Find(context.Context, string, map[string]any, int, any) error { return nil }
