package catalog

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sellerdesk/variant-engine/internal/domain"
)

// testDB opens the integration database and starts each test from empty
// tables. Tests are skipped unless TEST_POSTGRES_DSN is set.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("set TEST_POSTGRES_DSN to run database integration tests")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&productRow{}, &groupRow{}, &groupMemberRow{}, &feedbackRow{}))

	for _, model := range []interface{}{&feedbackRow{}, &groupMemberRow{}, &groupRow{}, &productRow{}} {
		require.NoError(t, db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error)
	}
	return db
}

func TestGormCatalog(t *testing.T) {
	db := testDB(t)
	cat := NewGormCatalog(db)
	ctx := context.Background()

	err := cat.ReplaceProducts(ctx, []domain.Product{
		{ID: "p2", SKU: "SHIRT-RED-M", Title: "Shirt Red M", Price: 9.99, Category: "Apparel"},
		{ID: "p1", SKU: "SHIRT-RED-S", Title: "Shirt Red S", Price: 9.99, Attributes: map[string]string{"color": "red"}},
	})
	require.NoError(t, err)

	products, err := cat.FetchProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "p1", products[0].ID)
	assert.Equal(t, map[string]string{"color": "red"}, products[0].Attributes)
	assert.Equal(t, "p2", products[1].ID)

	p, err := cat.GetProduct(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, "Shirt Red M", p.Title)

	_, err = cat.GetProduct(ctx, "p9")
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	// Re-import replaces the previous snapshot wholesale.
	require.NoError(t, cat.ReplaceProducts(ctx, []domain.Product{{ID: "p3", SKU: "MUG-RED"}}))
	products, err = cat.FetchProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "p3", products[0].ID)
}

func TestGormGroupStore(t *testing.T) {
	db := testDB(t)
	store := NewGormGroupStore(db)
	ctx := context.Background()

	saved, err := store.SaveGroup(ctx, domain.VariantGroup{
		ID:               "grp-1",
		Name:             "Shirt Red S",
		MainProductID:    "p1",
		MemberProductIDs: []string{"p1", "p2"},
	})
	require.NoError(t, err)
	assert.False(t, saved.CreatedAt.IsZero())

	updated, err := store.SaveGroup(ctx, domain.VariantGroup{
		ID:               "grp-1",
		Name:             "Shirt Red S",
		MainProductID:    "p2",
		MemberProductIDs: []string{"p1", "p2", "p3"},
	})
	require.NoError(t, err)
	assert.Equal(t, saved.CreatedAt.Unix(), updated.CreatedAt.Unix())
	assert.Equal(t, []string{"p1", "p2", "p3"}, updated.MemberProductIDs)

	// The unique membership index refuses a product already held by
	// another group.
	_, err = store.SaveGroup(ctx, domain.VariantGroup{
		ID:               "grp-2",
		MainProductID:    "p3",
		MemberProductIDs: []string{"p3", "p4"},
	})
	assert.Error(t, err)

	got, err := store.GetGroup(ctx, "grp-1")
	require.NoError(t, err)
	assert.Equal(t, "p2", got.MainProductID)

	groups, err := store.ListGroups(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, []string{"p1", "p2", "p3"}, groups[0].MemberProductIDs)

	require.NoError(t, store.DeleteGroup(ctx, "grp-1"))
	assert.ErrorIs(t, store.DeleteGroup(ctx, "grp-1"), domain.ErrGroupNotFound)

	// Former members are free once the group is gone.
	_, err = store.SaveGroup(ctx, domain.VariantGroup{
		ID:               "grp-3",
		MainProductID:    "p1",
		MemberProductIDs: []string{"p1", "p2"},
	})
	require.NoError(t, err)
}

func TestGormFeedbackLog(t *testing.T) {
	db := testDB(t)
	log := NewGormFeedbackLog(db)
	ctx := context.Background()

	require.NoError(t, log.Append(ctx, domain.FeedbackEvent{
		ID: "fb-1", BaseKey: "shirt", Action: domain.FeedbackRejected, Confidence: 0.69,
	}))
	require.NoError(t, log.Append(ctx, domain.FeedbackEvent{
		ID: "fb-2", BaseKey: "shirt", Action: domain.FeedbackAccepted, Confidence: 0.72,
		Metadata: map[string]string{"groupId": "grp-1"},
	}))

	history, err := log.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "fb-1", history[0].ID, "events keep append order")
	assert.Equal(t, domain.FeedbackAccepted, history[1].Action)
	assert.Equal(t, map[string]string{"groupId": "grp-1"}, history[1].Metadata)

	require.NoError(t, log.Clear(ctx))
	history, err = log.History(ctx)
	require.NoError(t, err)
	assert.Empty(t, history)
}
