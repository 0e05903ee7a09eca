package sheetssql

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// ValueReader reads raw cell values from a spreadsheet range
type ValueReader interface {
	GetValues(spreadsheetID, sheetRange string) ([][]interface{}, error)
}

// GetTableAs reads a tab and maps each row below the header row to a struct of type T.
// Fields are matched to columns through their ssql_header tag.
func GetTableAs[T any](reader ValueReader, spreadsheetID, tableName string) ([]T, error) {
	values, err := reader.GetValues(spreadsheetID, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to get table %s: %w", tableName, err)
	}

	rows, err := ParseRows[T](values)
	if err != nil {
		return nil, fmt.Errorf("failed to parse table %s: %w", tableName, err)
	}
	return rows, nil
}

// ParseRows maps a grid whose first row holds column headers to structs of type T.
// Every tagged field must have a matching header. Blank rows are skipped.
func ParseRows[T any](values [][]interface{}) ([]T, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("table has no header row")
	}

	var model T
	t := reflect.TypeOf(model)
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%s is not a struct", t)
	}

	// Build mapping of column name to index
	columnIndexes := make(map[string]int)
	for i, header := range values[0] {
		if headerStr, ok := header.(string); ok {
			columnIndexes[strings.TrimSpace(headerStr)] = i
		}
	}

	// Build mapping of struct field index to column index
	type binding struct {
		field  int
		column int
		name   string
	}
	var bindings []binding
	for i := 0; i < t.NumField(); i++ {
		columnName := t.Field(i).Tag.Get("ssql_header")
		if columnName == "" {
			continue
		}
		colIdx, ok := columnIndexes[columnName]
		if !ok {
			return nil, fmt.Errorf("missing column %q", columnName)
		}
		bindings = append(bindings, binding{field: i, column: colIdx, name: columnName})
	}

	// Parse each data row into a struct
	dataRows := values[1:]
	results := make([]T, 0, len(dataRows))
	for rowIdx, row := range dataRows {
		if isBlankRow(row) {
			continue
		}

		result := reflect.New(t).Elem()
		for _, b := range bindings {
			// Column is empty in this row
			if b.column >= len(row) || row[b.column] == nil {
				continue
			}

			if err := setFieldValue(result.Field(b.field), row[b.column]); err != nil {
				// +2: one for the header, one for 1-based sheet rows
				return nil, fmt.Errorf("row %d, column %s: %w", rowIdx+2, b.name, err)
			}
		}

		results = append(results, result.Interface().(T))
	}

	return results, nil
}

func isBlankRow(row []interface{}) bool {
	for _, cell := range row {
		if s, ok := cell.(string); !ok || strings.TrimSpace(s) != "" {
			return false
		}
	}
	return true
}

// setFieldValue converts a sheet cell value to the appropriate Go type and sets it on the field
func setFieldValue(field reflect.Value, cellValue interface{}) error {
	if !field.CanSet() {
		return fmt.Errorf("field cannot be set")
	}

	// Get the cell as a string first (sheets API returns strings)
	cellStr, ok := cellValue.(string)
	if !ok {
		return fmt.Errorf("cell value is not a string")
	}
	cellStr = strings.TrimSpace(cellStr)

	// Convert based on field type
	switch field.Kind() {
	case reflect.String:
		field.SetString(cellStr)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if cellStr == "" {
			field.SetInt(0)
		} else {
			intVal, err := strconv.ParseInt(cellStr, 10, 64)
			if err != nil {
				return fmt.Errorf("failed to parse int: %w", err)
			}
			field.SetInt(intVal)
		}

	case reflect.Float32, reflect.Float64:
		if cellStr == "" {
			field.SetFloat(0)
		} else {
			floatVal, err := strconv.ParseFloat(cellStr, 64)
			if err != nil {
				return fmt.Errorf("failed to parse float: %w", err)
			}
			field.SetFloat(floatVal)
		}

	case reflect.Bool:
		if cellStr == "" {
			field.SetBool(false)
		} else {
			boolVal, err := strconv.ParseBool(cellStr)
			if err != nil {
				return fmt.Errorf("failed to parse bool: %w", err)
			}
			field.SetBool(boolVal)
		}

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type())
		}
		// Comma separated list, e.g. labels
		items := []string{}
		for _, part := range strings.Split(cellStr, ",") {
			if part = strings.TrimSpace(part); part != "" {
				items = append(items, part)
			}
		}
		field.Set(reflect.ValueOf(items))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}
