package cache

import (
	"net/url"
	"testing"
)

func TestKey(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		query url.Values
		want  string
	}{
		{
			name: "path only",
			path: "/catalog/items",
			want: "/catalog/items",
		},
		{
			name:  "path with query",
			path:  "/prices/live",
			query: url.Values{"ids": []string{"sku-1,sku-2"}},
			want:  "/prices/live?ids=sku-1%2Csku-2",
		},
		{
			name:  "empty query same as none",
			path:  "/catalog/items",
			query: url.Values{},
			want:  "/catalog/items",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Key(tt.path, tt.query); got != tt.want {
				t.Errorf("Key() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKey_ParameterOrderIrrelevant(t *testing.T) {
	a := url.Values{}
	a.Set("page", "2")
	a.Set("sort", "price")

	b := url.Values{}
	b.Set("sort", "price")
	b.Set("page", "2")

	if Key("/catalog/items", a) != Key("/catalog/items", b) {
		t.Error("keys differ for equivalent queries")
	}
}
