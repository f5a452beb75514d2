// Package storage provides SQLite persistence for items, price
// snapshots, and fetch audit logs.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"skinarb/internal/models"
)

// ItemQuotes pairs an item with its most recent snapshot per source.
// A nil snapshot means no observation exists yet for that source.
type ItemQuotes struct {
	Item  models.Item           `json:"item"`
	Steam *models.SteamSnapshot `json:"steam"`
	Buff  *models.BuffSnapshot  `json:"buff"`
}

// History holds the windowed observation sequences for one item,
// ordered by capture time ascending. Used as volatility input.
type History struct {
	Steam []models.SteamSnapshot `json:"steam"`
	Buff  []models.BuffSnapshot  `json:"buff"`
}

// Store defines the persistence surface. Snapshot and log writes are
// append-only inserts; the only permitted update is caching an item's
// resolved Buff goods ID.
type Store interface {
	// GetOrCreateItem returns the item with the given market hash name,
	// creating it if absent. A non-nil buffGoodsID is cached onto an
	// existing item.
	GetOrCreateItem(marketHashName string, buffGoodsID *int64) (*models.Item, error)

	// SetBuffGoodsID caches a resolved Buff goods ID onto an item.
	SetBuffGoodsID(itemID uint, goodsID int64) error

	// GetItem returns one item by ID.
	GetItem(itemID uint) (*models.Item, error)

	// ListItems returns the items with the given IDs, or all items when
	// ids is empty.
	ListItems(ids []uint) ([]models.Item, error)

	// InsertSteamSnapshot appends a Steam observation and returns its ID.
	InsertSteamSnapshot(snap *models.SteamSnapshot) (uint, error)

	// InsertBuffSnapshot appends a Buff observation and returns its ID.
	InsertBuffSnapshot(snap *models.BuffSnapshot) (uint, error)

	// LogFetch appends a fetch audit record.
	LogFetch(entry *models.FetchLog) error

	// LatestQuotes returns the latest snapshot per source for each item.
	// The maximum capture timestamp is resolved per item and per source;
	// there is no single global "latest" row because items are polled at
	// different points in a cycle. A nil itemID means all items.
	LatestQuotes(itemID *uint) ([]ItemQuotes, error)

	// PriceHistory returns observations for an item within
	// [now - windowDays, now], ordered by capture time ascending.
	PriceHistory(itemID uint, windowDays int) (*History, error)

	// Close releases database resources.
	Close() error
}

type gormStore struct {
	db *gorm.DB
}

// Open opens (or creates) the SQLite database at path. The schema is
// managed by goose migrations (cmd/migrate); Open does not create it.
func Open(path string) (Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite database %s: %w", path, err)
	}

	return NewGormStore(db), nil
}

// NewGormStore wraps an existing gorm connection. Used by tests with an
// in-memory database.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) GetOrCreateItem(marketHashName string, buffGoodsID *int64) (*models.Item, error) {
	var item models.Item
	err := s.db.Where("market_hash_name = ?", marketHashName).First(&item).Error
	switch {
	case err == nil:
		if buffGoodsID != nil {
			if err := s.SetBuffGoodsID(item.ID, *buffGoodsID); err != nil {
				return nil, err
			}
			item.BuffGoodsID = buffGoodsID
		}
		return &item, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		item = models.Item{MarketHashName: marketHashName, BuffGoodsID: buffGoodsID}
		if err := s.db.Create(&item).Error; err != nil {
			return nil, fmt.Errorf("create item %q: %w", marketHashName, err)
		}
		return &item, nil
	default:
		return nil, fmt.Errorf("lookup item %q: %w", marketHashName, err)
	}
}

func (s *gormStore) SetBuffGoodsID(itemID uint, goodsID int64) error {
	err := s.db.Model(&models.Item{}).
		Where("item_id = ?", itemID).
		Updates(map[string]any{"buff_goods_id": goodsID, "updated_at": time.Now()}).Error
	if err != nil {
		return fmt.Errorf("set buff goods id for item %d: %w", itemID, err)
	}
	return nil
}

func (s *gormStore) GetItem(itemID uint) (*models.Item, error) {
	var item models.Item
	if err := s.db.Where("item_id = ?", itemID).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *gormStore) ListItems(ids []uint) ([]models.Item, error) {
	var items []models.Item
	query := s.db.Order("item_id")
	if len(ids) > 0 {
		query = query.Where("item_id IN ?", ids)
	}
	if err := query.Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

func (s *gormStore) InsertSteamSnapshot(snap *models.SteamSnapshot) (uint, error) {
	if snap.Timestamp.IsZero() {
		snap.Timestamp = time.Now()
	}
	if err := s.db.Create(snap).Error; err != nil {
		return 0, fmt.Errorf("insert steam snapshot: %w", err)
	}
	return snap.ID, nil
}

func (s *gormStore) InsertBuffSnapshot(snap *models.BuffSnapshot) (uint, error) {
	if snap.Timestamp.IsZero() {
		snap.Timestamp = time.Now()
	}
	if err := s.db.Create(snap).Error; err != nil {
		return 0, fmt.Errorf("insert buff snapshot: %w", err)
	}
	return snap.ID, nil
}

func (s *gormStore) LogFetch(entry *models.FetchLog) error {
	if err := s.db.Create(entry).Error; err != nil {
		return fmt.Errorf("insert fetch log: %w", err)
	}
	return nil
}

func (s *gormStore) LatestQuotes(itemID *uint) ([]ItemQuotes, error) {
	var ids []uint
	if itemID != nil {
		ids = []uint{*itemID}
	}
	items, err := s.ListItems(ids)
	if err != nil {
		return nil, err
	}

	results := make([]ItemQuotes, 0, len(items))
	for _, item := range items {
		quotes := ItemQuotes{Item: item}

		steam, err := s.latestSteam(item.ID)
		if err != nil {
			return nil, err
		}
		quotes.Steam = steam

		buff, err := s.latestBuff(item.ID)
		if err != nil {
			return nil, err
		}
		quotes.Buff = buff

		results = append(results, quotes)
	}
	return results, nil
}

// latestSteam fetches the row at the item's maximum capture timestamp.
// The max is resolved inside the query; SQLite hands aggregate datetime
// columns back as strings, so it never crosses the driver boundary.
// Timestamp ties resolve to the highest snapshot ID.
func (s *gormStore) latestSteam(itemID uint) (*models.SteamSnapshot, error) {
	var snaps []models.SteamSnapshot
	err := s.db.
		Where("item_id = ? AND timestamp = (SELECT MAX(timestamp) FROM steam_snapshots WHERE item_id = ?)", itemID, itemID).
		Order("snapshot_id DESC").
		Limit(1).
		Find(&snaps).Error
	if err != nil {
		return nil, fmt.Errorf("latest steam snapshot for item %d: %w", itemID, err)
	}
	if len(snaps) == 0 {
		return nil, nil
	}
	return &snaps[0], nil
}

func (s *gormStore) latestBuff(itemID uint) (*models.BuffSnapshot, error) {
	var snaps []models.BuffSnapshot
	err := s.db.
		Where("item_id = ? AND timestamp = (SELECT MAX(timestamp) FROM buff_snapshots WHERE item_id = ?)", itemID, itemID).
		Order("snapshot_id DESC").
		Limit(1).
		Find(&snaps).Error
	if err != nil {
		return nil, fmt.Errorf("latest buff snapshot for item %d: %w", itemID, err)
	}
	if len(snaps) == 0 {
		return nil, nil
	}
	return &snaps[0], nil
}

func (s *gormStore) PriceHistory(itemID uint, windowDays int) (*History, error) {
	cutoff := time.Now().AddDate(0, 0, -windowDays)
	history := &History{}

	err := s.db.Where("item_id = ? AND timestamp >= ?", itemID, cutoff).
		Order("timestamp ASC").
		Find(&history.Steam).Error
	if err != nil {
		return nil, fmt.Errorf("steam history for item %d: %w", itemID, err)
	}

	err = s.db.Where("item_id = ? AND timestamp >= ?", itemID, cutoff).
		Order("timestamp ASC").
		Find(&history.Buff).Error
	if err != nil {
		return nil, fmt.Errorf("buff history for item %d: %w", itemID, err)
	}

	return history, nil
}

func (s *gormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
