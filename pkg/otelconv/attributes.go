/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package otelconv normalizes OTLP wire records into the models package types.
package otelconv

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"math"
	"strconv"
	"unicode/utf8"

	commonv1 "go.opentelemetry.io/proto/otlp/common/v1"

	"github.com/carverauto/otelhub/pkg/models"
)

// Limits bounds what a single converted record may carry.
type Limits struct {
	// MaxAttributeCount caps attributes per record. Zero disables the cap.
	MaxAttributeCount int `json:"max_attribute_count"`
	// MaxAttributeLength truncates attribute values, counted in runes. Zero disables truncation.
	MaxAttributeLength int `json:"max_attribute_length"`
	MaxSpanEventCount  int `json:"max_span_event_count"`
}

// DefaultLimits returns the limits applied when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxAttributeCount:  128,
		MaxAttributeLength: 0,
		MaxSpanEventCount:  128,
	}
}

// FlattenValue renders an OTLP value as a display string. Arrays and key/value
// lists become compact JSON that keeps encounter order.
func FlattenValue(v *commonv1.AnyValue) string {
	if v == nil {
		return ""
	}

	switch val := v.GetValue().(type) {
	case *commonv1.AnyValue_StringValue:
		return val.StringValue
	case *commonv1.AnyValue_BoolValue:
		return strconv.FormatBool(val.BoolValue)
	case *commonv1.AnyValue_IntValue:
		return strconv.FormatInt(val.IntValue, 10)
	case *commonv1.AnyValue_DoubleValue:
		return formatDouble(val.DoubleValue)
	case *commonv1.AnyValue_BytesValue:
		return base64.StdEncoding.EncodeToString(val.BytesValue)
	case *commonv1.AnyValue_ArrayValue:
		var buf bytes.Buffer
		writeArray(&buf, val.ArrayValue)

		return buf.String()
	case *commonv1.AnyValue_KvlistValue:
		var buf bytes.Buffer
		writeKvList(&buf, val.KvlistValue)

		return buf.String()
	default:
		return ""
	}
}

func formatDouble(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func writeJSONValue(buf *bytes.Buffer, v *commonv1.AnyValue) {
	if v == nil {
		buf.WriteString("null")
		return
	}

	switch val := v.GetValue().(type) {
	case *commonv1.AnyValue_StringValue:
		writeJSONString(buf, val.StringValue)
	case *commonv1.AnyValue_BoolValue:
		buf.WriteString(strconv.FormatBool(val.BoolValue))
	case *commonv1.AnyValue_IntValue:
		buf.WriteString(strconv.FormatInt(val.IntValue, 10))
	case *commonv1.AnyValue_DoubleValue:
		if math.IsNaN(val.DoubleValue) || math.IsInf(val.DoubleValue, 0) {
			writeJSONString(buf, formatDouble(val.DoubleValue))
			return
		}

		buf.WriteString(formatDouble(val.DoubleValue))
	case *commonv1.AnyValue_BytesValue:
		writeJSONString(buf, base64.StdEncoding.EncodeToString(val.BytesValue))
	case *commonv1.AnyValue_ArrayValue:
		writeArray(buf, val.ArrayValue)
	case *commonv1.AnyValue_KvlistValue:
		writeKvList(buf, val.KvlistValue)
	default:
		buf.WriteString("null")
	}
}

func writeArray(buf *bytes.Buffer, arr *commonv1.ArrayValue) {
	buf.WriteByte('[')

	for i, item := range arr.GetValues() {
		if i > 0 {
			buf.WriteByte(',')
		}

		writeJSONValue(buf, item)
	}

	buf.WriteByte(']')
}

func writeKvList(buf *bytes.Buffer, list *commonv1.KeyValueList) {
	buf.WriteByte('{')

	for i, kv := range list.GetValues() {
		if i > 0 {
			buf.WriteByte(',')
		}

		writeJSONString(buf, kv.GetKey())
		buf.WriteByte(':')
		writeJSONValue(buf, kv.GetValue())
	}

	buf.WriteByte('}')
}

func writeJSONString(buf *bytes.Buffer, s string) {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)

	// Encode appends a newline which is dropped below.
	_ = enc.Encode(s)
	buf.Truncate(buf.Len() - 1)
}

// ConvertAttributes flattens OTLP attributes. A repeated key keeps its first
// position and its last value; empty keys are dropped.
func ConvertAttributes(attrs []*commonv1.KeyValue, limits Limits) []models.KeyValue {
	out := make([]models.KeyValue, 0, len(attrs))
	index := make(map[string]int, len(attrs))

	for _, kv := range attrs {
		key := kv.GetKey()
		if key == "" {
			continue
		}

		value := truncate(FlattenValue(kv.GetValue()), limits.MaxAttributeLength)

		if pos, ok := index[key]; ok {
			out[pos].Value = value
			continue
		}

		if limits.MaxAttributeCount > 0 && len(out) >= limits.MaxAttributeCount {
			continue
		}

		index[key] = len(out)
		out = append(out, models.KeyValue{Key: key, Value: value})
	}

	return out
}

func truncate(value string, maxLength int) string {
	if maxLength <= 0 || len(value) <= maxLength {
		return value
	}

	if utf8.RuneCountInString(value) <= maxLength {
		return value
	}

	runes := []rune(value)

	return string(runes[:maxLength])
}
