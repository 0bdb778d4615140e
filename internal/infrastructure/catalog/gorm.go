package catalog

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sellerdesk/variant-engine/internal/domain"
)

// Open connects to the configured database and migrates the schema.
// driver selects sqlite or postgres; dsn passes through to the driver.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}

	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	if err := db.AutoMigrate(&productRow{}, &groupRow{}, &groupMemberRow{}, &feedbackRow{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return db, nil
}

// GormCatalog is the database-backed product snapshot.
type GormCatalog struct {
	db *gorm.DB
}

// NewGormCatalog creates a catalog repository over an open database handle.
func NewGormCatalog(db *gorm.DB) *GormCatalog {
	return &GormCatalog{db: db}
}

// FetchProducts returns the full snapshot ordered by product ID.
func (c *GormCatalog) FetchProducts(ctx context.Context) ([]domain.Product, error) {
	var rows []productRow
	if err := c.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("fetch products: %w", err)
	}
	out := make([]domain.Product, 0, len(rows))
	for _, r := range rows {
		out = append(out, rowToProduct(r))
	}
	return out, nil
}

// GetProduct returns one product by ID.
func (c *GormCatalog) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var row productRow
	err := c.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}
	p := rowToProduct(row)
	return &p, nil
}

// ReplaceProducts swaps the snapshot inside one transaction. Entries
// without an ID are dropped; duplicate IDs keep the last occurrence.
func (c *GormCatalog) ReplaceProducts(ctx context.Context, products []domain.Product) error {
	rows := make([]productRow, 0, len(products))
	seen := make(map[string]int, len(products))
	for _, p := range products {
		if p.ID == "" {
			continue
		}
		row := productToRow(p)
		if i, ok := seen[p.ID]; ok {
			rows[i] = row
			continue
		}
		seen[p.ID] = len(rows)
		rows = append(rows, row)
	}

	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&productRow{}).Error; err != nil {
			return fmt.Errorf("clear products: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(rows, 500).Error; err != nil {
			return fmt.Errorf("insert products: %w", err)
		}
		return nil
	})
}

// GormGroupStore is the database-backed variant-group store.
type GormGroupStore struct {
	db *gorm.DB
}

// NewGormGroupStore creates a group store over an open database handle.
func NewGormGroupStore(db *gorm.DB) *GormGroupStore {
	return &GormGroupStore{db: db}
}

// SaveGroup inserts or updates a group and its membership rows in one
// transaction, then returns the stored state. CreatedAt survives updates.
func (s *GormGroupStore) SaveGroup(ctx context.Context, group domain.VariantGroup) (*domain.VariantGroup, error) {
	var stored domain.VariantGroup
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		row := groupRow{
			ID:            group.ID,
			Name:          group.Name,
			MainProductID: group.MainProductID,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		var existing groupRow
		err := tx.First(&existing, "id = ?", group.ID).Error
		switch {
		case err == nil:
			row.CreatedAt = existing.CreatedAt
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("load group %s: %w", group.ID, err)
		}

		if err := tx.Save(&row).Error; err != nil {
			return fmt.Errorf("save group %s: %w", group.ID, err)
		}
		if err := tx.Where("group_id = ?", group.ID).Delete(&groupMemberRow{}).Error; err != nil {
			return fmt.Errorf("clear members of %s: %w", group.ID, err)
		}

		members := make([]groupMemberRow, 0, len(group.MemberProductIDs))
		for _, id := range group.MemberProductIDs {
			members = append(members, groupMemberRow{GroupID: group.ID, ProductID: id})
		}
		if len(members) > 0 {
			if err := tx.CreateInBatches(members, 200).Error; err != nil {
				return fmt.Errorf("save members of %s: %w", group.ID, err)
			}
		}

		stored = rowToGroup(row, group.MemberProductIDs)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// GetGroup returns one group with its members.
func (s *GormGroupStore) GetGroup(ctx context.Context, id string) (*domain.VariantGroup, error) {
	var row groupRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrGroupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get group %s: %w", id, err)
	}

	var members []groupMemberRow
	if err := s.db.WithContext(ctx).Where("group_id = ?", id).Find(&members).Error; err != nil {
		return nil, fmt.Errorf("load members of %s: %w", id, err)
	}
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ProductID)
	}

	g := rowToGroup(row, ids)
	return &g, nil
}

// ListGroups returns all groups with their members, ordered by group ID.
func (s *GormGroupStore) ListGroups(ctx context.Context) ([]domain.VariantGroup, error) {
	var rows []groupRow
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}

	var members []groupMemberRow
	if err := s.db.WithContext(ctx).Find(&members).Error; err != nil {
		return nil, fmt.Errorf("load group members: %w", err)
	}
	byGroup := make(map[string][]string, len(rows))
	for _, m := range members {
		byGroup[m.GroupID] = append(byGroup[m.GroupID], m.ProductID)
	}

	out := make([]domain.VariantGroup, 0, len(rows))
	for _, r := range rows {
		out = append(out, rowToGroup(r, byGroup[r.ID]))
	}
	return out, nil
}

// DeleteGroup removes a group and its membership rows. Missing groups
// report domain.ErrGroupNotFound.
func (s *GormGroupStore) DeleteGroup(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&groupRow{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("delete group %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.ErrGroupNotFound
		}
		if err := tx.Where("group_id = ?", id).Delete(&groupMemberRow{}).Error; err != nil {
			return fmt.Errorf("delete members of %s: %w", id, err)
		}
		return nil
	})
}

// GormFeedbackLog is the database-backed append-only feedback journal.
type GormFeedbackLog struct {
	db *gorm.DB
}

// NewGormFeedbackLog creates a feedback journal over an open database handle.
func NewGormFeedbackLog(db *gorm.DB) *GormFeedbackLog {
	return &GormFeedbackLog{db: db}
}

// Append records one event.
func (l *GormFeedbackLog) Append(ctx context.Context, event domain.FeedbackEvent) error {
	row := feedbackToRow(event)
	if err := l.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("append feedback %s: %w", event.ID, err)
	}
	return nil
}

// History returns all events in append order.
func (l *GormFeedbackLog) History(ctx context.Context) ([]domain.FeedbackEvent, error) {
	var rows []feedbackRow
	if err := l.db.WithContext(ctx).Order("seq").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load feedback history: %w", err)
	}
	out := make([]domain.FeedbackEvent, 0, len(rows))
	for _, r := range rows {
		out = append(out, rowToFeedback(r))
	}
	return out, nil
}

// Clear drops the journal.
func (l *GormFeedbackLog) Clear(ctx context.Context) error {
	if err := l.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&feedbackRow{}).Error; err != nil {
		return fmt.Errorf("clear feedback history: %w", err)
	}
	return nil
}
