package maritime

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// Store persists vessel routes, customers, notifications and tickets.
type Store struct {
	db *gorm.DB
}

// Open opens the sqlite database at dsn and migrates the schema.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	// sqlite serializes writers; one connection also keeps :memory: databases shared
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&VesselRoute{}, &Customer{}, &Notification{}, &Ticket{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks that the database answers queries.
func (s *Store) Ping(ctx context.Context) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(&VesselRoute{}).Limit(1).Count(&n).Error; err != nil {
		return fmt.Errorf("ping store: %w", err)
	}
	return nil
}

// RoutesIn returns the routes through region, ordered by ETA. A non-zero
// until excludes routes arriving after it.
func (s *Store) RoutesIn(ctx context.Context, region string, until time.Time) ([]VesselRoute, error) {
	q := s.db.WithContext(ctx).Where("LOWER(region) = ?", strings.ToLower(strings.TrimSpace(region)))
	if !until.IsZero() {
		q = q.Where("eta <= ?", until.UTC())
	}

	var routes []VesselRoute
	if err := q.Order("eta ASC").Find(&routes).Error; err != nil {
		return nil, fmt.Errorf("query routes: %w", err)
	}
	return routes, nil
}

// Vessels returns the routes of the given IMO numbers. Unknown numbers are
// skipped.
func (s *Store) Vessels(ctx context.Context, imos []string) ([]VesselRoute, error) {
	var routes []VesselRoute
	if len(imos) == 0 {
		return routes, nil
	}
	if err := s.db.WithContext(ctx).Where("imo IN ?", imos).Order("imo ASC").Find(&routes).Error; err != nil {
		return nil, fmt.Errorf("query vessels: %w", err)
	}
	return routes, nil
}

// MajorCustomers returns the major customers shipping on the given vessels.
func (s *Store) MajorCustomers(ctx context.Context, imos []string) ([]Customer, error) {
	var customers []Customer
	if len(imos) == 0 {
		return customers, nil
	}
	err := s.db.WithContext(ctx).
		Where("vessel_imo IN ? AND major = ?", imos, true).
		Order("name ASC").
		Find(&customers).Error
	if err != nil {
		return nil, fmt.Errorf("query customers: %w", err)
	}
	return customers, nil
}

func (s *Store) SaveNotifications(ctx context.Context, notifications []Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(&notifications).Error; err != nil {
		return fmt.Errorf("save notifications: %w", err)
	}
	return nil
}

func (s *Store) Notifications(ctx context.Context, vesselID string) ([]Notification, error) {
	var out []Notification
	if err := s.db.WithContext(ctx).Where("vessel_id = ?", vesselID).Order("id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	return out, nil
}

func (s *Store) CreateTicket(ctx context.Context, t *Ticket) error {
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("create ticket: %w", err)
	}
	return nil
}

func (s *Store) Ticket(ctx context.Context, id string) (*Ticket, error) {
	var t Ticket
	if err := s.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("get ticket %s: %w", id, err)
	}
	return &t, nil
}

// Seed upserts the reference routes and customers. ETAs are relative to now.
func (s *Store) Seed(ctx context.Context, now time.Time) error {
	routes := seedRoutes(now.UTC())
	customers := seedCustomers()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&routes).Error; err != nil {
			return fmt.Errorf("seed routes: %w", err)
		}
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&customers).Error; err != nil {
			return fmt.Errorf("seed customers: %w", err)
		}
		return nil
	})
}
