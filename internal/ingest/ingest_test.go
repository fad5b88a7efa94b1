package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcandelario/instacart-insights/internal/domain"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func writeBaseTables(t *testing.T, dir string) {
	t.Helper()
	writeFile(t, dir, "departments.csv", "department_id,department\n1,produce\n2,dairy eggs\n")
	writeFile(t, dir, "aisles.csv", "aisle_id,aisle\n1,fresh fruits\n2,milk\n")
	writeFile(t, dir, "products.csv",
		"product_id,product_name,aisle_id,department_id\n10,Banana,1,1\n20,Whole Milk,2,2\n")
	writeFile(t, dir, "orders.csv",
		"order_id,user_id,order_number,order_dow,order_hour_of_day,days_since_prior_order\n"+
			"100,1,1,0,9,\n"+
			"101,1,2,3,14,7.0\n")
	writeFile(t, dir, "order_products__prior.csv",
		"order_id,product_id,add_to_cart_order,reordered\n"+
			"100,10,1,0\n"+
			"101,10,1,1\n"+
			"101,20,2,0\n")
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeBaseTables(t, dir)

	ds, err := LoadDir(dir)
	require.NoError(t, err)

	assert.Len(t, ds.Departments, 2)
	assert.Len(t, ds.Aisles, 2)
	assert.Len(t, ds.Products, 2)
	assert.Len(t, ds.Orders, 2)
	assert.Len(t, ds.OrderLines, 3)
	assert.Zero(t, ds.RejectedRows)

	first := ds.Orders[100]
	assert.Nil(t, first.DaysSincePriorOrder)

	second := ds.Orders[101]
	require.NotNil(t, second.DaysSincePriorOrder)
	assert.Equal(t, 7, *second.DaysSincePriorOrder)

	assert.True(t, ds.OrderLines[1].Reordered)
}

func TestLoadDirOptionalTables(t *testing.T) {
	dir := t.TempDir()
	writeBaseTables(t, dir)
	writeFile(t, dir, "promotions.csv",
		"promotion_id,entity_id,start_period,end_period\n1,10,2017-03-06,2017-03-13\n")
	writeFile(t, dir, "prices.csv", "product_id,price\n10,0.39\n20,3.49\n")

	ds, err := LoadDir(dir)
	require.NoError(t, err)

	require.Len(t, ds.Promotions, 1)
	assert.Equal(t, int64(10), ds.Promotions[0].EntityID)
	assert.False(t, ds.Promotions[0].Synthetic)

	assert.InDelta(t, 0.39, ds.Prices[10], 1e-9)
	assert.InDelta(t, 3.49, ds.Prices[20], 1e-9)
}

func TestLoadDirMissingColumnIsFatal(t *testing.T) {
	dir := t.TempDir()
	writeBaseTables(t, dir)
	writeFile(t, dir, "orders.csv", "order_id,user_id\n100,1\n")

	_, err := LoadDir(dir)
	assert.ErrorIs(t, err, domain.ErrSchemaViolation)
}

func TestLoadDirRejectsInvalidRows(t *testing.T) {
	dir := t.TempDir()
	writeBaseTables(t, dir)
	writeFile(t, dir, "orders.csv",
		"order_id,user_id,order_number,order_dow,order_hour_of_day\n"+
			"100,1,1,0,9\n"+
			"101,1,2,3,14\n"+
			"102,1,3,9,14\n"+ // order_dow out of range
			"103,1,0,2,14\n") // order_number below 1

	ds, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Len(t, ds.Orders, 2)
	assert.Equal(t, 2, ds.RejectedRows)
}

// Duplicate keys must be rejected like any other invalid row, keeping the
// first occurrence rather than silently overwriting it.
func TestLoadDirRejectsDuplicateKeys(t *testing.T) {
	dir := t.TempDir()
	writeBaseTables(t, dir)
	writeFile(t, dir, "departments.csv",
		"department_id,department\n1,produce\n2,dairy eggs\n1,bakery\n")
	writeFile(t, dir, "aisles.csv",
		"aisle_id,aisle\n1,fresh fruits\n2,milk\n2,yogurt\n")
	writeFile(t, dir, "products.csv",
		"product_id,product_name,aisle_id,department_id\n"+
			"10,Banana,1,1\n"+
			"20,Whole Milk,2,2\n"+
			"10,Organic Banana,1,1\n")
	writeFile(t, dir, "orders.csv",
		"order_id,user_id,order_number,order_dow,order_hour_of_day\n"+
			"100,1,1,0,9\n"+
			"101,1,2,3,14\n"+
			"100,2,5,4,16\n")

	ds, err := LoadDir(dir)
	require.NoError(t, err)

	assert.Equal(t, 4, ds.RejectedRows)
	assert.Len(t, ds.Departments, 2)
	assert.Len(t, ds.Aisles, 2)
	assert.Len(t, ds.Products, 2)
	assert.Len(t, ds.Orders, 2)

	assert.Equal(t, "produce", ds.Departments[1].Name)
	assert.Equal(t, "milk", ds.Aisles[2].Name)
	assert.Equal(t, "Banana", ds.Products[10].ProductName)
	assert.Equal(t, int64(1), ds.Orders[100].UserID)
}

func TestValidateOrphanProduct(t *testing.T) {
	dir := t.TempDir()
	writeBaseTables(t, dir)
	writeFile(t, dir, "products.csv",
		"product_id,product_name,aisle_id,department_id\n10,Banana,1,99\n")

	_, err := LoadDir(dir)
	require.ErrorIs(t, err, domain.ErrSchemaViolation)
	assert.Contains(t, err.Error(), "department_id 99")
}

func TestValidateOrphanOrderLine(t *testing.T) {
	dir := t.TempDir()
	writeBaseTables(t, dir)
	writeFile(t, dir, "order_products__prior.csv",
		"order_id,product_id,add_to_cart_order,reordered\n999,10,1,0\n")

	_, err := LoadDir(dir)
	require.ErrorIs(t, err, domain.ErrSchemaViolation)
	assert.Contains(t, err.Error(), "order_id 999")
}

func TestValidatePromotionWindow(t *testing.T) {
	dir := t.TempDir()
	writeBaseTables(t, dir)
	writeFile(t, dir, "promotions.csv",
		"promotion_id,entity_id,start_period,end_period\n1,10,2017-03-13,2017-03-06\n")

	_, err := LoadDir(dir)
	require.ErrorIs(t, err, domain.ErrSchemaViolation)
	assert.Contains(t, err.Error(), "end precedes start")
}

func TestNormalizeColumnName(t *testing.T) {
	assert.Equal(t, normalizeColumnName("Order_ID"), normalizeColumnName("order_id"))
	assert.Equal(t, normalizeColumnName(" order id "), normalizeColumnName("order_id"))
}

func TestParseBool(t *testing.T) {
	for _, s := range []string{"1", "true", "T"} {
		v, err := parseBool(s)
		require.NoError(t, err)
		assert.True(t, v)
	}
	for _, s := range []string{"0", "false", "F"} {
		v, err := parseBool(s)
		require.NoError(t, err)
		assert.False(t, v)
	}
	_, err := parseBool("yes")
	assert.Error(t, err)
}
