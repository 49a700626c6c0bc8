package catalog

import (
	"context"
	"os"
	"reflect"
	"testing"

	"gorm.io/gorm"
)

func testDB(tb testing.TB) *gorm.DB {
	tb.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		tb.Skip("set TEST_POSTGRES_DSN to run postgres integration tests")
	}
	db, err := OpenPostgres(dsn)
	if err != nil {
		tb.Fatalf("open postgres: %v", err)
	}
	if err := db.Migrator().DropTable(Models()...); err != nil {
		tb.Fatalf("drop tables: %v", err)
	}
	return db
}

func TestGormCatalogMatchesMemory(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)

	fh, err := os.Open("testdata/shop.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer fh.Close()
	f, err := ReadFixture(fh)
	if err != nil {
		t.Fatal(err)
	}

	gc := NewGormCatalog(db)
	if err := gc.AutoMigrate(ctx); err != nil {
		t.Fatal(err)
	}
	if err := gc.Seed(ctx, f); err != nil {
		t.Fatal(err)
	}
	mc := NewMemoryCatalog(f)

	gb, err := gc.Baskets(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	mb, _ := mc.Baskets(ctx, 0)
	if !reflect.DeepEqual(gb, mb) {
		t.Errorf("baskets: gorm %v, memory %v", gb, mb)
	}
	gbrands, _ := gc.Brands(ctx)
	mbrands, _ := mc.Brands(ctx)
	if !reflect.DeepEqual(gbrands, mbrands) {
		t.Errorf("brands: gorm %v, memory %v", gbrands, mbrands)
	}
	p1, err := gc.Product(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if !p1.Features.Matches("connection", "Bluetooth") {
		t.Errorf("features roundtrip = %v", p1.Features.Map())
	}
	orders, _ := gc.OrdersForUser(ctx, "u1")
	if len(orders) != 2 {
		t.Errorf("orders = %v", orders)
	}
}
