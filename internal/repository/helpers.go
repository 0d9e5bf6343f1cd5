package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/momoso/api/internal/database"
	"github.com/surrealdb/surrealdb.go/pkg/models"
)

// isUniqueConstraintError checks if an error is a unique constraint violation
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, database.ErrDuplicate) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "unique") ||
		strings.Contains(errStr, "duplicate") ||
		strings.Contains(errStr, "already exists") ||
		strings.Contains(errStr, "already contains")
}

// ptrToNone converts a string pointer to either the string value or nil.
// Queries test the value with IF $x IS NOT NULL.
func ptrToNone(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

type createdRecord struct {
	ID        string
	CreatedOn time.Time
	UpdatedOn time.Time
}

// extractCreatedRecord reads the id and timestamps of the first record a
// CREATE statement returned
func extractCreatedRecord(result []interface{}) (*createdRecord, error) {
	rows := extractRows(result)
	if len(rows) == 0 {
		return nil, errors.New("no result returned")
	}

	data := rows[0]
	record := &createdRecord{}
	if id, ok := data["id"]; ok {
		record.ID = convertSurrealID(id)
	}
	record.CreatedOn = parseTime(data["created_on"])
	record.UpdatedOn = parseTime(data["updated_on"])
	return record, nil
}

// extractRows returns the records of the first statement in a Query result
func extractRows(result []interface{}) []map[string]interface{} {
	if len(result) == 0 {
		return nil
	}

	var items []interface{}
	switch first := result[0].(type) {
	case map[string]interface{}:
		if status, ok := first["status"].(string); ok && status == "OK" {
			switch r := first["result"].(type) {
			case []interface{}:
				items = r
			case map[string]interface{}:
				items = []interface{}{r}
			}
		} else {
			items = result
		}
	default:
		items = result
	}

	rows := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]interface{}); ok {
			rows = append(rows, m)
		}
	}
	return rows
}

// unwrapRecord navigates a QueryOne result down to the record map
func unwrapRecord(result interface{}) (map[string]interface{}, error) {
	if result == nil {
		return nil, database.ErrNotFound
	}

	if resp, ok := result.(map[string]interface{}); ok {
		if status, ok := resp["status"].(string); ok && status == "OK" {
			if resultData, ok := resp["result"].([]interface{}); ok {
				if len(resultData) == 0 {
					return nil, database.ErrNotFound
				}
				result = resultData[0]
			}
		}
	}

	if arr, ok := result.([]interface{}); ok {
		if len(arr) == 0 {
			return nil, database.ErrNotFound
		}
		result = arr[0]
	}

	data, ok := result.(map[string]interface{})
	if !ok {
		return nil, errors.New("unexpected result format")
	}
	return data, nil
}

// decodeRecord converts a raw record into T. Record IDs become "table:id"
// strings and SurrealDB datetimes become time.Time before the JSON round
// trip.
func decodeRecord[T any](data map[string]interface{}) (*T, error) {
	normalized := make(map[string]interface{}, len(data))
	for k, v := range data {
		normalized[k] = normalizeValue(v)
	}

	jsonBytes, err := json.Marshal(normalized)
	if err != nil {
		return nil, err
	}

	var out T
	if err := json.Unmarshal(jsonBytes, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// decodeOne unwraps and decodes a QueryOne result. A missing record yields
// (nil, nil) so callers can distinguish absence from failure.
func decodeOne[T any](result interface{}, err error) (*T, error) {
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	data, err := unwrapRecord(result)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return decodeRecord[T](data)
}

// decodeRows decodes every record of a Query result
func decodeRows[T any](result []interface{}) ([]*T, error) {
	rows := extractRows(result)
	out := make([]*T, 0, len(rows))
	for _, row := range rows {
		item, err := decodeRecord[T](row)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

func normalizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case models.RecordID, *models.RecordID:
		return convertSurrealID(t)
	case models.CustomDateTime:
		return t.Time
	case *models.CustomDateTime:
		if t != nil {
			return t.Time
		}
		return nil
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, inner := range t {
			out[k] = normalizeValue(inner)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, inner := range t {
			out[i] = normalizeValue(inner)
		}
		return out
	}
	return v
}

// parseTime parses time from various formats
func parseTime(v interface{}) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return parsed
		}
	case models.CustomDateTime:
		return t.Time
	case *models.CustomDateTime:
		if t != nil {
			return t.Time
		}
	}
	return time.Time{}
}

// convertSurrealID converts a SurrealDB ID (which may be a complex object) to a string
func convertSurrealID(id interface{}) string {
	if str, ok := id.(string); ok {
		return str
	}

	if rid, ok := id.(models.RecordID); ok {
		return fmt.Sprintf("%s:%v", rid.Table, rid.ID)
	}
	if rid, ok := id.(*models.RecordID); ok && rid != nil {
		return fmt.Sprintf("%s:%v", rid.Table, rid.ID)
	}

	// Handle map format: {"tb": "user", "id": {"String": "demo"}} or similar
	if m, ok := id.(map[string]interface{}); ok {
		tb := ""
		idPart := ""

		if t, ok := m["tb"].(string); ok {
			tb = t
		} else if t, ok := m["Table"].(string); ok {
			tb = t
		}

		if idVal, ok := m["id"]; ok {
			idPart = extractIDValue(idVal)
		} else if idVal, ok := m["ID"]; ok {
			idPart = extractIDValue(idVal)
		}

		if tb != "" && idPart != "" {
			return tb + ":" + idPart
		}
		if idPart != "" {
			return idPart
		}
	}

	return fmt.Sprintf("%v", id)
}

// extractIDValue extracts the ID value which may be nested
func extractIDValue(val interface{}) string {
	if str, ok := val.(string); ok {
		return str
	}
	if m, ok := val.(map[string]interface{}); ok {
		if s, ok := m["String"].(string); ok {
			return s
		}
	}
	return fmt.Sprintf("%v", val)
}

// extractCount extracts count from a "SELECT count() AS count ... GROUP ALL" result
func extractCount(result interface{}) int {
	data, err := unwrapRecord(result)
	if err != nil {
		return 0
	}
	return extractCountValue(data["count"])
}

// extractCountValue converts various numeric types to int
func extractCountValue(v interface{}) int {
	switch c := v.(type) {
	case float64:
		return int(c)
	case float32:
		return int(c)
	case int:
		return c
	case int64:
		return int(c)
	case uint64:
		return int(c)
	}
	return 0
}

func isNotFound(err error) bool {
	return errors.Is(err, database.ErrNotFound)
}
