package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeCallback(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"/calendar", "/calendar"},
		{"/chores?view=week#today", "/chores?view=week#today"},
		{"", ""},
		{"calendar", ""},
		{"//evil.example", ""},
		{"/\\evil.example", ""},
		{"/\\/evil.example", ""},
		{"\\\\evil.example", ""},
		{"/ok\\..\\evil", ""},
		{"https://evil.example/", ""},
		{"/\r\nLocation: https://evil.example", ""},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, safeCallback(tt.raw))
		})
	}
}
