package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	apperrors "aqicli/internal/errors"
)

// JSONWriter writes reports as indented JSON files.
type JSONWriter struct {
	logger *slog.Logger
}

// NewJSONWriter creates a JSON report writer.
func NewJSONWriter(logger *slog.Logger) *JSONWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &JSONWriter{logger: logger}
}

// Write sanitizes v and writes it as indented JSON, creating parent
// directories as needed.
func (w *JSONWriter) Write(ctx context.Context, path string, v interface{}) error {
	start := time.Now()

	data, err := json.MarshalIndent(Sanitize(v), "", "  ")
	if err != nil {
		return apperrors.NewStorageError("encode "+path, err)
	}
	data = append(data, '\n')
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return apperrors.NewStorageError("create directory for "+path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return apperrors.NewStorageError("write "+path, err)
	}

	w.logger.InfoContext(ctx, "json report written",
		"path", path,
		"bytes", len(data),
		"duration", time.Since(start))
	return nil
}

var jsonMarshalerType = reflect.TypeOf((*json.Marshaler)(nil)).Elem()

// Sanitize returns a JSON-encodable copy of v with every NaN or infinite
// float replaced by nil. The in-memory reports use NaN for measures a
// validator did not compute, and encoding/json rejects those outright.
// Struct json tags are honored so the sanitized tree marshals to the same
// document shape the raw value would.
func Sanitize(v interface{}) interface{} {
	return sanitizeValue(reflect.ValueOf(v))
}

func sanitizeValue(v reflect.Value) interface{} {
	if !v.IsValid() {
		return nil
	}
	// Types with their own JSON encoding (time.Time) carry no raw floats
	// and pass through untouched.
	if v.Type().Implements(jsonMarshalerType) {
		return v.Interface()
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return sanitizeValue(v.Elem())
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return f
	case reflect.Slice:
		if v.IsNil() {
			return nil
		}
		out := make([]interface{}, v.Len())
		for i := 0; i < v.Len(); i++ {
			out[i] = sanitizeValue(v.Index(i))
		}
		return out
	case reflect.Array:
		out := make([]interface{}, v.Len())
		for i := 0; i < v.Len(); i++ {
			out[i] = sanitizeValue(v.Index(i))
		}
		return out
	case reflect.Map:
		if v.IsNil() {
			return nil
		}
		out := make(map[string]interface{}, v.Len())
		for _, key := range v.MapKeys() {
			out[fmt.Sprint(key.Interface())] = sanitizeValue(v.MapIndex(key))
		}
		return out
	case reflect.Struct:
		return sanitizeStruct(v)
	default:
		return v.Interface()
	}
}

func sanitizeStruct(v reflect.Value) interface{} {
	out := make(map[string]interface{})
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name, omitempty := parseJSONTag(field.Tag.Get("json"))
		if name == "-" {
			continue
		}
		fv := v.Field(i)
		if omitempty && isEmptyValue(fv) {
			continue
		}
		if field.Anonymous && name == "" {
			// untagged embedded structs inline their fields
			if inner, ok := sanitizeValue(fv).(map[string]interface{}); ok {
				for k, val := range inner {
					out[k] = val
				}
				continue
			}
		}
		if name == "" {
			name = field.Name
		}
		out[name] = sanitizeValue(fv)
	}
	return out
}

func parseJSONTag(tag string) (string, bool) {
	if tag == "" {
		return "", false
	}
	parts := strings.Split(tag, ",")
	omitempty := false
	for _, opt := range parts[1:] {
		if opt == "omitempty" {
			omitempty = true
		}
	}
	return parts[0], omitempty
}

func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Slice, reflect.Map, reflect.String:
		return v.Len() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Pointer, reflect.Interface:
		return v.IsNil()
	}
	return false
}
