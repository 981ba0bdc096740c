// Package ingest parses business feed files (CSV or XLSX) into business
// records ready for import. Column mapping is header-driven so feeds from
// different providers load without per-feed code.
package ingest

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/sitecheck/internal/model"
)

// Record is one parsed feed row: the business plus the feed's website
// URL claim, which may be empty.
type Record struct {
	Business   model.Business
	WebsiteURL string
}

// columnAliases maps canonical field names to the header spellings seen
// in the wild. Matching is case-insensitive after trimming.
var columnAliases = map[string][]string{
	"id":          {"id", "business_id", "record_id"},
	"name":        {"name", "business_name", "company", "company_name"},
	"phone":       {"phone", "phone_number", "telephone"},
	"street":      {"street", "address", "address1", "street_address"},
	"city":        {"city", "town", "locality"},
	"state":       {"state", "region", "province"},
	"postal_code": {"postal_code", "zip", "zip_code", "postcode"},
	"country":     {"country", "country_code"},
	"category":    {"category", "industry", "vertical"},
	"website":     {"website", "url", "website_url", "domain"},
}

type columnMap map[string]int

func mapHeader(header []string) (columnMap, error) {
	byName := make(map[string]int, len(header))
	for i, h := range header {
		byName[strings.ToLower(strings.TrimSpace(h))] = i
	}

	cm := make(columnMap)
	for field, aliases := range columnAliases {
		for _, alias := range aliases {
			if idx, ok := byName[alias]; ok {
				cm[field] = idx
				break
			}
		}
	}

	if _, ok := cm["name"]; !ok {
		return nil, eris.New("ingest: no name column found in header")
	}
	return cm, nil
}

func (cm columnMap) get(row []string, field string) string {
	idx, ok := cm[field]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func (cm columnMap) toRecord(row []string) Record {
	b := model.Business{
		ID:         cm.get(row, "id"),
		Name:       cm.get(row, "name"),
		Phone:      cm.get(row, "phone"),
		Street:     cm.get(row, "street"),
		City:       cm.get(row, "city"),
		State:      cm.get(row, "state"),
		PostalCode: cm.get(row, "postal_code"),
		Country:    strings.ToUpper(cm.get(row, "country")),
		Category:   cm.get(row, "category"),
	}
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	return Record{
		Business:   b,
		WebsiteURL: cm.get(row, "website"),
	}
}

// ReadFile parses a feed file, dispatching on the extension. Rows with an
// empty name are skipped.
func ReadFile(path string) ([]Record, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "ingest: open csv")
		}
		defer f.Close() //nolint:errcheck
		return ReadCSV(f)
	case ".xlsx":
		return ReadXLSX(path, 0)
	default:
		return nil, eris.Errorf("ingest: unsupported feed format %q", filepath.Ext(path))
	}
}

// ReadCSV parses a business feed from CSV. The first row must be a
// header.
func ReadCSV(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read csv header")
	}
	cm, err := mapHeader(header)
	if err != nil {
		return nil, err
	}

	var records []Record
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "ingest: read csv row")
		}

		rec := cm.toRecord(row)
		if rec.Business.Name == "" {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}
