package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLooseEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b interface{}
		want bool
	}{
		{"both nil", nil, nil, true},
		{"same string", "Alice", "Alice", true},
		{"different string", "Alice", "Alicia", false},
		{"int vs numeric string", 42, "42", true},
		{"float vs int", 1.0, 1, true},
		{"numeric strings", "1.0", "1", true},
		{"padded numeric string", " 7 ", 7, true},
		{"json number vs int", json.Number("30"), 30, true},
		{"json number vs float", json.Number("2.5"), 2.5, true},
		{"different numbers", 3, "4", false},
		{"true vs one", true, 1, true},
		{"true vs non-empty string", true, "yes", true},
		{"false vs zero string", false, "0", true},
		{"false vs empty string", false, "", true},
		{"false vs nil", false, nil, true},
		{"false vs empty list", false, []interface{}{}, true},
		{"true vs empty string", true, "", false},
		{"nil vs empty string", nil, "", true},
		{"nil vs zero string", nil, "0", false},
		{"nil vs text", nil, "x", false},
		{"nil vs zero", nil, 0, true},
		{"nil vs number", nil, 5, false},
		{"nil vs empty list", nil, []interface{}{}, true},
		{"number vs text", 5, "five", false},
		{"equal lists", []interface{}{"a", 1}, []interface{}{"a", "1"}, true},
		{"different list length", []interface{}{"a"}, []interface{}{"a", "b"}, false},
		{"different list item", []interface{}{"a"}, []interface{}{"b"}, false},
		{"equal maps", map[string]interface{}{"k": 1}, map[string]interface{}{"k": "1"}, true},
		{"different map keys", map[string]interface{}{"k": 1}, map[string]interface{}{"j": 1}, false},
		{"list vs string", []interface{}{"a"}, "a", false},
		{"long integers differ", "12345678901234567", "12345678901234568", false},
		{"long integers equal", "12345678901234567", "12345678901234567", true},
		{"long integer vs int64", "12345678901234567", int64(12345678901234567), true},
		{"long json number vs string", json.Number("12345678901234567"), "12345678901234568", false},
		{"integers beyond int64 differ", "123456789012345678901", "123456789012345678902", false},
		{"integers beyond int64 equal", "+00123456789012345678901", "123456789012345678901", true},
		{"beyond int64 vs int64 max", "9223372036854775808", "9223372036854775807", false},
		{"uint64 max vs digits", uint64(18446744073709551615), "18446744073709551615", true},
		{"signed integer string", "+007", 7, true},
		{"exponent vs integer", "1e3", 1000, true},
		{"fraction compares as float", "12345678901234567.0", "12345678901234568", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LooseEqual(tt.a, tt.b))
			assert.Equal(t, tt.want, LooseEqual(tt.b, tt.a), "should be symmetric")
		})
	}
}
