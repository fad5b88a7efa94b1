// internal/ingest/ingest.go
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rcandelario/instacart-insights/internal/domain"
	"github.com/rcandelario/instacart-insights/pkg/logger"
)

// Dataset holds the validated input tables for one pipeline run.
type Dataset struct {
	Orders      map[int64]domain.Order
	OrderLines  []domain.OrderLine
	Products    map[int64]domain.Product
	Departments map[int64]domain.Department
	Aisles      map[int64]domain.Aisle

	// Optional tables
	Promotions []domain.PromotionEvent
	Prices     map[int64]float64 // average observed price per product

	RejectedRows int // unparseable rows logged and excluded during load
}

// LoadDir loads all input CSVs from dataDir and validates referential
// integrity. Expected files follow the Instacart raw layout: orders.csv,
// products.csv, order_products__prior.csv, departments.csv, aisles.csv,
// plus optional promotions.csv and prices.csv.
func LoadDir(dataDir string) (*Dataset, error) {
	ds := &Dataset{
		Orders:      make(map[int64]domain.Order),
		Products:    make(map[int64]domain.Product),
		Departments: make(map[int64]domain.Department),
		Aisles:      make(map[int64]domain.Aisle),
		Prices:      make(map[int64]float64),
	}

	if err := ds.loadDepartments(filepath.Join(dataDir, "departments.csv")); err != nil {
		return nil, err
	}
	if err := ds.loadAisles(filepath.Join(dataDir, "aisles.csv")); err != nil {
		return nil, err
	}
	if err := ds.loadProducts(filepath.Join(dataDir, "products.csv")); err != nil {
		return nil, err
	}
	if err := ds.loadOrders(filepath.Join(dataDir, "orders.csv")); err != nil {
		return nil, err
	}
	if err := ds.loadOrderLines(filepath.Join(dataDir, "order_products__prior.csv")); err != nil {
		return nil, err
	}

	// Optional tables: absence is fine, malformed content is not.
	promoPath := filepath.Join(dataDir, "promotions.csv")
	if _, err := os.Stat(promoPath); err == nil {
		if err := ds.loadPromotions(promoPath); err != nil {
			return nil, err
		}
	}
	pricePath := filepath.Join(dataDir, "prices.csv")
	if _, err := os.Stat(pricePath); err == nil {
		if err := ds.loadPrices(pricePath); err != nil {
			return nil, err
		}
	}

	if err := ds.Validate(); err != nil {
		return nil, err
	}

	return ds, nil
}

// Validate checks referential integrity across the loaded tables. Orphan
// rows are rejected with a SchemaViolation naming the table and row, never
// silently dropped.
func (ds *Dataset) Validate() error {
	for id, p := range ds.Products {
		if _, ok := ds.Aisles[p.AisleID]; !ok {
			return domain.SchemaViolation("products", int(id),
				fmt.Sprintf("aisle_id %d does not exist", p.AisleID))
		}
		if _, ok := ds.Departments[p.DepartmentID]; !ok {
			return domain.SchemaViolation("products", int(id),
				fmt.Sprintf("department_id %d does not exist", p.DepartmentID))
		}
	}

	for i, line := range ds.OrderLines {
		if _, ok := ds.Orders[line.OrderID]; !ok {
			return domain.SchemaViolation("order_lines", i+1,
				fmt.Sprintf("order_id %d does not exist", line.OrderID))
		}
		if _, ok := ds.Products[line.ProductID]; !ok {
			return domain.SchemaViolation("order_lines", i+1,
				fmt.Sprintf("product_id %d does not exist", line.ProductID))
		}
	}

	for _, ev := range ds.Promotions {
		if ev.End.Before(ev.Start) {
			return domain.SchemaViolation("promotions", int(ev.PromotionID),
				"end precedes start")
		}
	}

	return nil
}

func (ds *Dataset) loadDepartments(path string) error {
	return ds.eachRow(path, "departments", []string{"department_id", "department"},
		func(table string, rowNum int, get func(string) string) error {
			id, err := parseInt(get("department_id"))
			if err != nil {
				return domain.SchemaViolation(table, rowNum, "invalid department_id")
			}
			name := get("department")
			if name == "" {
				return domain.SchemaViolation(table, rowNum, "missing department name")
			}
			if _, ok := ds.Departments[id]; ok {
				return domain.SchemaViolation(table, rowNum,
					fmt.Sprintf("duplicate department_id %d", id))
			}
			ds.Departments[id] = domain.Department{ID: id, Name: name}
			return nil
		})
}

func (ds *Dataset) loadAisles(path string) error {
	return ds.eachRow(path, "aisles", []string{"aisle_id", "aisle"},
		func(table string, rowNum int, get func(string) string) error {
			id, err := parseInt(get("aisle_id"))
			if err != nil {
				return domain.SchemaViolation(table, rowNum, "invalid aisle_id")
			}
			name := get("aisle")
			if name == "" {
				return domain.SchemaViolation(table, rowNum, "missing aisle name")
			}
			if _, ok := ds.Aisles[id]; ok {
				return domain.SchemaViolation(table, rowNum,
					fmt.Sprintf("duplicate aisle_id %d", id))
			}
			ds.Aisles[id] = domain.Aisle{ID: id, Name: name}
			return nil
		})
}

func (ds *Dataset) loadProducts(path string) error {
	return ds.eachRow(path, "products",
		[]string{"product_id", "product_name", "aisle_id", "department_id"},
		func(table string, rowNum int, get func(string) string) error {
			id, err := parseInt(get("product_id"))
			if err != nil {
				return domain.SchemaViolation(table, rowNum, "invalid product_id")
			}
			aisleID, err := parseInt(get("aisle_id"))
			if err != nil {
				return domain.SchemaViolation(table, rowNum, "invalid aisle_id")
			}
			deptID, err := parseInt(get("department_id"))
			if err != nil {
				return domain.SchemaViolation(table, rowNum, "invalid department_id")
			}
			if _, ok := ds.Products[id]; ok {
				return domain.SchemaViolation(table, rowNum,
					fmt.Sprintf("duplicate product_id %d", id))
			}
			ds.Products[id] = domain.Product{
				ProductID:    id,
				ProductName:  get("product_name"),
				AisleID:      aisleID,
				DepartmentID: deptID,
			}
			return nil
		})
}

func (ds *Dataset) loadOrders(path string) error {
	return ds.eachRow(path, "orders",
		[]string{"order_id", "user_id", "order_number", "order_dow", "order_hour_of_day"},
		func(table string, rowNum int, get func(string) string) error {
			orderID, err := parseInt(get("order_id"))
			if err != nil {
				return domain.SchemaViolation(table, rowNum, "invalid order_id")
			}
			userID, err := parseInt(get("user_id"))
			if err != nil {
				return domain.SchemaViolation(table, rowNum, "invalid user_id")
			}
			orderNumber, err := parseInt(get("order_number"))
			if err != nil || orderNumber < 1 {
				return domain.SchemaViolation(table, rowNum, "order_number must be >= 1")
			}
			dow, err := parseInt(get("order_dow"))
			if err != nil || dow < 0 || dow > 6 {
				return domain.SchemaViolation(table, rowNum, "order_dow must be in 0..6")
			}
			hour, err := parseInt(get("order_hour_of_day"))
			if err != nil || hour < 0 || hour > 23 {
				return domain.SchemaViolation(table, rowNum, "order_hour_of_day must be in 0..23")
			}

			if _, ok := ds.Orders[orderID]; ok {
				return domain.SchemaViolation(table, rowNum,
					fmt.Sprintf("duplicate order_id %d", orderID))
			}

			order := domain.Order{
				OrderID:        orderID,
				UserID:         userID,
				OrderNumber:    int(orderNumber),
				OrderDOW:       int(dow),
				OrderHourOfDay: int(hour),
			}
			// Nullable: empty means first order for the customer.
			if raw := get("days_since_prior_order"); raw != "" {
				days, err := parseFloatAsInt(raw)
				if err != nil || days < 0 {
					return domain.SchemaViolation(table, rowNum, "days_since_prior_order must be >= 0")
				}
				order.DaysSincePriorOrder = &days
			}

			ds.Orders[orderID] = order
			return nil
		})
}

func (ds *Dataset) loadOrderLines(path string) error {
	return ds.eachRow(path, "order_lines",
		[]string{"order_id", "product_id", "add_to_cart_order", "reordered"},
		func(table string, rowNum int, get func(string) string) error {
			orderID, err := parseInt(get("order_id"))
			if err != nil {
				return domain.SchemaViolation(table, rowNum, "invalid order_id")
			}
			productID, err := parseInt(get("product_id"))
			if err != nil {
				return domain.SchemaViolation(table, rowNum, "invalid product_id")
			}
			cartOrder, err := parseInt(get("add_to_cart_order"))
			if err != nil || cartOrder < 1 {
				return domain.SchemaViolation(table, rowNum, "add_to_cart_order must be >= 1")
			}
			reordered, err := parseBool(get("reordered"))
			if err != nil {
				return domain.SchemaViolation(table, rowNum, "invalid reordered flag")
			}

			ds.OrderLines = append(ds.OrderLines, domain.OrderLine{
				OrderID:        orderID,
				ProductID:      productID,
				AddToCartOrder: int(cartOrder),
				Reordered:      reordered,
			})
			return nil
		})
}

func (ds *Dataset) loadPromotions(path string) error {
	return ds.eachRow(path, "promotions",
		[]string{"promotion_id", "entity_id", "start_period", "end_period"},
		func(table string, rowNum int, get func(string) string) error {
			promoID, err := parseInt(get("promotion_id"))
			if err != nil {
				return domain.SchemaViolation(table, rowNum, "invalid promotion_id")
			}
			entityID, err := parseInt(get("entity_id"))
			if err != nil {
				return domain.SchemaViolation(table, rowNum, "invalid entity_id")
			}
			start, err := time.Parse("2006-01-02", get("start_period"))
			if err != nil {
				return domain.SchemaViolation(table, rowNum, "invalid start_period")
			}
			end, err := time.Parse("2006-01-02", get("end_period"))
			if err != nil {
				return domain.SchemaViolation(table, rowNum, "invalid end_period")
			}

			ds.Promotions = append(ds.Promotions, domain.PromotionEvent{
				PromotionID: promoID,
				EntityID:    entityID,
				Start:       start,
				End:         end,
			})
			return nil
		})
}

func (ds *Dataset) loadPrices(path string) error {
	return ds.eachRow(path, "prices", []string{"product_id", "price"},
		func(table string, rowNum int, get func(string) string) error {
			productID, err := parseInt(get("product_id"))
			if err != nil {
				return domain.SchemaViolation(table, rowNum, "invalid product_id")
			}
			price, err := strconv.ParseFloat(get("price"), 64)
			if err != nil || price < 0 {
				return domain.SchemaViolation(table, rowNum, "price must be >= 0")
			}
			ds.Prices[productID] = price
			return nil
		})
}

// eachRow streams a CSV file row by row. Missing required columns abort
// with a table-level SchemaViolation. Row-level violations returned by fn
// are logged and the record is excluded, never coerced.
func (ds *Dataset) eachRow(path, table string, required []string,
	fn func(table string, rowNum int, get func(string) string) error) error {

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s table: %w", table, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return domain.SchemaViolation(table, 0, "missing header row")
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[normalizeColumnName(h)] = i
	}
	for _, col := range required {
		if _, ok := index[normalizeColumnName(col)]; !ok {
			return domain.SchemaViolation(table, 0, "missing required column "+col)
		}
	}

	rowNum := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return domain.SchemaViolation(table, rowNum+1, err.Error())
		}
		rowNum++

		get := func(col string) string {
			idx, ok := index[normalizeColumnName(col)]
			if !ok || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}

		if err := fn(table, rowNum, get); err != nil {
			logger.Log.Warn().Err(err).Str("table", table).Int("row", rowNum).
				Msg("rejecting invalid record")
			ds.RejectedRows++
		}
	}

	return nil
}

var columnNameSanitizer = strings.NewReplacer(" ", "", "_", "", ".", "", "-", "")

func normalizeColumnName(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	return columnNameSanitizer.Replace(name)
}

func parseInt(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	return strconv.ParseInt(s, 10, 64)
}

// parseFloatAsInt accepts integer-valued floats such as "14.0", which the
// raw orders table uses for days_since_prior_order.
func parseFloatAsInt(s string) (int, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "true", "t":
		return true, nil
	case "0", "false", "f":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean: %q", s)
}
