// Package models defines the domain models used across the application.
package models

import "time"

// Item is a tradable good tracked across both marketplaces.
// MarketHashName is the Steam-side identity and is globally unique;
// BuffGoodsID is resolved lazily via Buff search and cached.
type Item struct {
	ID uint `gorm:"primaryKey;column:item_id" json:"item_id"`

	// MarketHashName is the Steam market hash name (e.g.,
	// "AK-47 | Redline (Field-Tested)").
	MarketHashName string `gorm:"column:market_hash_name;uniqueIndex;not null" json:"market_hash_name"`

	// BuffGoodsID is the Buff goods identifier, nil until resolved.
	BuffGoodsID *int64 `gorm:"column:buff_goods_id" json:"buff_goods_id"`

	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Item) TableName() string { return "items" }

// SteamSnapshot is one normalized Steam price observation.
// Rows are append-only and never updated.
type SteamSnapshot struct {
	ID     uint `gorm:"primaryKey;column:snapshot_id" json:"snapshot_id"`
	ItemID uint `gorm:"column:item_id;index;not null" json:"item_id"`

	// Timestamp is the capture time. Monotonically non-decreasing per
	// item because fetches are strictly sequential.
	Timestamp time.Time `gorm:"column:timestamp;index;not null" json:"timestamp"`

	BestBid      *float64 `gorm:"column:best_bid" json:"best_bid"`
	BestAsk      *float64 `gorm:"column:best_ask" json:"best_ask"`
	Volume24h    *int64   `gorm:"column:volume_24h" json:"volume_24h"`
	Volume7d     *int64   `gorm:"column:volume_7d" json:"volume_7d"`
	MedianPrice  *float64 `gorm:"column:median_price" json:"median_price"`
	LowestPrice  *float64 `gorm:"column:lowest_price" json:"lowest_price"`
	HighestPrice *float64 `gorm:"column:highest_price" json:"highest_price"`
	CurrencyID   int      `gorm:"column:currency_id" json:"currency_id"`

	// RawResponse is the unmodified API payload, kept for audit/debug.
	RawResponse []byte `gorm:"column:raw_response" json:"-"`
}

func (SteamSnapshot) TableName() string { return "steam_snapshots" }

// BuffSnapshot is one normalized Buff order-book observation.
// Rows are append-only and never updated.
type BuffSnapshot struct {
	ID     uint `gorm:"primaryKey;column:snapshot_id" json:"snapshot_id"`
	ItemID uint `gorm:"column:item_id;index;not null" json:"item_id"`

	Timestamp time.Time `gorm:"column:timestamp;index;not null" json:"timestamp"`

	BestAsk        *float64 `gorm:"column:best_ask" json:"best_ask"`
	BestBid        *float64 `gorm:"column:best_bid" json:"best_bid"`
	Volume24h      *int64   `gorm:"column:volume_24h" json:"volume_24h"`
	Volume7d       *int64   `gorm:"column:volume_7d" json:"volume_7d"`
	SellOrderCount *int     `gorm:"column:sell_order_count" json:"sell_order_count"`
	BuyOrderCount  *int     `gorm:"column:buy_order_count" json:"buy_order_count"`
	Currency       string   `gorm:"column:currency" json:"currency"`

	RawResponse []byte `gorm:"column:raw_response" json:"-"`
}

func (BuffSnapshot) TableName() string { return "buff_snapshots" }

// FetchLog is the audit record of one network attempt, success or not.
// Append-only.
type FetchLog struct {
	ID uint `gorm:"primaryKey;column:log_id" json:"log_id"`

	// Source is the marketplace name ("steam" or "buff").
	Source string `gorm:"column:source;not null" json:"source"`

	// Endpoint tags which API was hit (e.g., "priceoverview", "sell_order").
	Endpoint string `gorm:"column:endpoint;not null" json:"endpoint"`

	StatusCode   *int    `gorm:"column:status_code" json:"status_code"`
	LatencyMS    *int64  `gorm:"column:latency_ms" json:"latency_ms"`
	Success      bool    `gorm:"column:success" json:"success"`
	ErrorMessage *string `gorm:"column:error_message" json:"error_message"`
	ItemID       *uint   `gorm:"column:item_id" json:"item_id"`

	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (FetchLog) TableName() string { return "fetch_logs" }
