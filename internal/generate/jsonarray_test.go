package generate

import (
	"testing"
	"time"
)

var testNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func TestFindJSONArray(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		array     string
		malformed string
	}{
		{
			name:  "bare array",
			text:  `[{"fields":{"a":"b"}}]`,
			array: `[{"fields":{"a":"b"}}]`,
		},
		{
			name:  "prose around",
			text:  "Här är inläggen:\n[{\"fields\": {\"a\": 1}}, {\"fields\": {}}]\nLycka till!",
			array: `[{"fields": {"a": 1}}, {"fields": {}}]`,
		},
		{
			name:  "brackets inside strings",
			text:  `[{"fields":{"Tips":"se [1] och ]"}}]`,
			array: `[{"fields":{"Tips":"se [1] och ]"}}]`,
		},
		{
			name:  "escaped quote inside string",
			text:  `[{"fields":{"Hook":"hon sa \"[hej]\""}}]`,
			array: `[{"fields":{"Hook":"hon sa \"[hej]\""}}]`,
		},
		{
			name:  "invalid region before valid array",
			text:  `Källa [1] säger: [{"fields":{"a":"b"}}]`,
			array: `[{"fields":{"a":"b"}}]`,
		},
		{
			name:  "two arrays picks the first",
			text:  `[{"fields":{"a":"1"}}] och [{"fields":{"b":"2"}}]`,
			array: `[{"fields":{"a":"1"}}]`,
		},
		{
			name:      "only malformed",
			text:      `svar: [{"a": }]`,
			malformed: `[{"a": }]`,
		},
		{
			name:      "valid JSON that is not an object array",
			text:      `[1, 2] ["a"]`,
			malformed: `[1, 2]`,
		},
		{
			name:      "empty array",
			text:      `inga inlägg: []`,
			malformed: `[]`,
		},
		{
			name:  "empty array in prose before the posts",
			text:  `Källlistan [] var tom. Här: [{"fields":{"Hook":"a"}}]`,
			array: `[{"fields":{"Hook":"a"}}]`,
		},
		{
			name:      "objects without fields",
			text:      `[{"a":1}] sedan [{"fields":"text"}]`,
			malformed: `[{"a":1}]`,
		},
		{
			name: "never closes",
			text: `[{"fields": {"a": "b"}`,
		},
		{
			name: "no brackets",
			text: "inget här",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := findJSONArray(tt.text)
			if got.array != tt.array {
				t.Errorf("array = %q, want %q", got.array, tt.array)
			}
			if got.malformed != tt.malformed {
				t.Errorf("malformed = %q, want %q", got.malformed, tt.malformed)
			}
		})
	}
}
