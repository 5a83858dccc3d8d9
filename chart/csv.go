package chart

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/corvetik19-lab/finapp-sub014/ledger"
)

const (
	numFields = 4
	colCode   = 0
	colName   = 1
	colType   = 2
	colParent = 3
)

// ReadDefinitions reads a chart CSV (header row: code,name,type,parent_code).
func ReadDefinitions(r io.Reader) ([]Definition, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading chart CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	var defs []Definition
	for i, rec := range records[1:] {
		def, err := UnmarshalDefinition(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// WriteDefinitions writes a chart CSV with a header row.
func WriteDefinitions(w io.Writer, defs []Definition) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write([]string{"code", "name", "type", "parent_code"}); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, def := range defs {
		if err := cw.Write(MarshalDefinition(def)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	return cw.Error()
}

// MarshalDefinition converts a Definition to a CSV row.
func MarshalDefinition(def Definition) []string {
	row := make([]string, numFields)
	row[colCode] = def.Code
	row[colName] = def.Name
	row[colType] = string(def.Type)
	row[colParent] = def.ParentCode
	return row
}

// UnmarshalDefinition converts a CSV row to a Definition.
func UnmarshalDefinition(record []string) (Definition, error) {
	if len(record) != numFields {
		return Definition{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}
	if record[colCode] == "" {
		return Definition{}, fmt.Errorf("code is required")
	}
	typ := ledger.AccountType(record[colType])
	if !typ.Valid() {
		return Definition{}, fmt.Errorf("unknown account type %q", record[colType])
	}
	return Definition{
		Code:       record[colCode],
		Name:       record[colName],
		Type:       typ,
		ParentCode: record[colParent],
	}, nil
}
