package history

import (
	"reflect"
	"testing"
)

func TestParseAddrs(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"localhost:11211", []string{"localhost:11211"}},
		{" a:1 , ,b:2 ", []string{"a:1", "b:2"}},
	}
	for _, tt := range tests {
		if got := parseAddrs(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parseAddrs(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewMemcachedRepository_KeyUsesSlot(t *testing.T) {
	r := NewMemcachedRepository("", "", 0, 0)
	defer r.Close()
	if r.key != "history:"+DefaultSlot {
		t.Errorf("key = %q", r.key)
	}
}
