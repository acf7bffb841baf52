package storage

import "testing"

func TestNormalizeURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{
			"postgres://u:p@localhost:5432/finance",
			"postgres://u:p@localhost:5432/finance?sslmode=disable",
		},
		{
			"postgresql://u:p@localhost:5432/finance",
			"postgres://u:p@localhost:5432/finance?sslmode=disable",
		},
		{
			"postgres://u:p@localhost:5432/finance?sslmode=require",
			"postgres://u:p@localhost:5432/finance?sslmode=require",
		},
		{
			"postgres://u:p@localhost:5432/finance?application_name=campusledger",
			"postgres://u:p@localhost:5432/finance?application_name=campusledger&sslmode=disable",
		},
	}
	for _, tc := range cases {
		if got := NormalizeURL(tc.in); got != tc.want {
			t.Fatalf("NormalizeURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
