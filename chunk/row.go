// Copyright 2022 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package chunk

import (
	"database/sql"
	"strconv"
)

// Kind of a column value after cleaning.
type Kind int

// Values of Kind.
const (
	Text      Kind = iota // passed through unchanged
	Timestamp             // parsed, or null when unparsable
	Number                // parsed, or 0 when unparsable or missing
)

// Column of the sales table.
type Column struct {
	Name string
	Kind Kind
}

// Column indices into Columns, in the table order.
const (
	ColInvoiceLineNo int = iota
	ColDate
	ColStore
	ColName
	ColAddress
	ColCity
	ColZipcode
	ColStoreLocation
	ColCountyNumber
	ColCounty
	ColCategory
	ColCategoryName
	ColVendorNo
	ColVendorName
	ColItemNo
	ColItemDesc
	ColPack
	ColBottleVolumeML
	ColStateBottleCost
	ColStateBottleRetail
	ColSaleBottles
	ColSaleDollars
	ColSaleLiters
	ColSaleGallons
	colLast // keep it last; not a real column.
)

// Columns of the sales table in the order of the destination table, which is
// also the bulk load column order.
var Columns = [colLast]Column{
	ColInvoiceLineNo:     {"invoice_line_no", Text},
	ColDate:              {"date", Timestamp},
	ColStore:             {"store", Text},
	ColName:              {"name", Text},
	ColAddress:           {"address", Text},
	ColCity:              {"city", Text},
	ColZipcode:           {"zipcode", Text},
	ColStoreLocation:     {"store_location", Text},
	ColCountyNumber:      {"county_number", Text},
	ColCounty:            {"county", Text},
	ColCategory:          {"category", Text},
	ColCategoryName:      {"category_name", Text},
	ColVendorNo:          {"vendor_no", Text},
	ColVendorName:        {"vendor_name", Text},
	ColItemNo:            {"itemno", Text},
	ColItemDesc:          {"im_desc", Text},
	ColPack:              {"pack", Number},
	ColBottleVolumeML:    {"bottle_volume_ml", Number},
	ColStateBottleCost:   {"state_bottle_cost", Number},
	ColStateBottleRetail: {"state_bottle_retail", Number},
	ColSaleBottles:       {"sale_bottles", Number},
	ColSaleDollars:       {"sale_dollars", Number},
	ColSaleLiters:        {"sale_liters", Number},
	ColSaleGallons:       {"sale_gallons", Number},
}

// ColumnNames in the table order.
func ColumnNames() []string {
	names := make([]string, len(Columns))
	for i, c := range Columns {
		names[i] = c.Name
	}
	return names
}

// MapColumns maps the i'th header column to its index in Columns. Headers that
// don't match any column are mapped to -1.
func MapColumns(header []string) []int {
	m := make([]int, len(header))
	for i, h := range header {
		m[i] = -1
		for j, c := range Columns {
			if h == c.Name {
				m[i] = j
				break
			}
		}
	}
	return m
}

// TimeLayout is the canonical text form of a cleaned timestamp, always in UTC.
const TimeLayout = "2006-01-02T15:04:05.999999999"

// Row is a cleaned record of the sales table. Date is null when the source
// value could not be parsed; numeric fields are never null.
type Row struct {
	InvoiceLineNo     string
	Date              sql.NullTime
	Store             string
	Name              string
	Address           string
	City              string
	Zipcode           string
	StoreLocation     string
	CountyNumber      string
	County            string
	Category          string
	CategoryName      string
	VendorNo          string
	VendorName        string
	ItemNo            string
	ItemDesc          string
	Pack              float64
	BottleVolumeML    float64
	StateBottleCost   float64
	StateBottleRetail float64
	SaleBottles       float64
	SaleDollars       float64
	SaleLiters        float64
	SaleGallons       float64
}

// TextField returns the text field of column i, or nil if the column is not a
// Text column.
func (r *Row) TextField(i int) *string {
	switch i {
	case ColInvoiceLineNo:
		return &r.InvoiceLineNo
	case ColStore:
		return &r.Store
	case ColName:
		return &r.Name
	case ColAddress:
		return &r.Address
	case ColCity:
		return &r.City
	case ColZipcode:
		return &r.Zipcode
	case ColStoreLocation:
		return &r.StoreLocation
	case ColCountyNumber:
		return &r.CountyNumber
	case ColCounty:
		return &r.County
	case ColCategory:
		return &r.Category
	case ColCategoryName:
		return &r.CategoryName
	case ColVendorNo:
		return &r.VendorNo
	case ColVendorName:
		return &r.VendorName
	case ColItemNo:
		return &r.ItemNo
	case ColItemDesc:
		return &r.ItemDesc
	}
	return nil
}

// NumberField returns the numeric field of column i, or nil if the column is
// not a Number column.
func (r *Row) NumberField(i int) *float64 {
	switch i {
	case ColPack:
		return &r.Pack
	case ColBottleVolumeML:
		return &r.BottleVolumeML
	case ColStateBottleCost:
		return &r.StateBottleCost
	case ColStateBottleRetail:
		return &r.StateBottleRetail
	case ColSaleBottles:
		return &r.SaleBottles
	case ColSaleDollars:
		return &r.SaleDollars
	case ColSaleLiters:
		return &r.SaleLiters
	case ColSaleGallons:
		return &r.SaleGallons
	}
	return nil
}

// Record renders the row as text in the table order. A null Date renders as an
// empty string and numbers use the shortest exact decimal form, so that
// cleaning the record again yields the same Row.
func (r *Row) Record() []string {
	rec := make([]string, len(Columns))
	for i, c := range Columns {
		switch c.Kind {
		case Text:
			rec[i] = *r.TextField(i)
		case Timestamp:
			if r.Date.Valid {
				rec[i] = r.Date.Time.UTC().Format(TimeLayout)
			}
		case Number:
			rec[i] = strconv.FormatFloat(*r.NumberField(i), 'f', -1, 64)
		}
	}
	return rec
}

// Values returns the row as bulk load values in the table order. A nil value
// is written as the null sentinel; only the Date and empty Text columns can be
// nil. Numeric columns are never nil.
func (r *Row) Values() []any {
	vals := make([]any, len(Columns))
	for i, c := range Columns {
		switch c.Kind {
		case Text:
			if s := *r.TextField(i); s != "" {
				vals[i] = s
			}
		case Timestamp:
			if r.Date.Valid {
				vals[i] = r.Date.Time
			}
		case Number:
			vals[i] = *r.NumberField(i)
		}
	}
	return vals
}
