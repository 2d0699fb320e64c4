package kill

import "testing"

func TestWithinDir(t *testing.T) {
	cases := []struct {
		path string
		root string
		want bool
	}{
		{path: "/app", root: "/app", want: true},
		{path: "/app/server", root: "/app", want: true},
		{path: "/app/server/deep", root: "/app", want: true},
		{path: "/application", root: "/app", want: false},
		{path: "/elsewhere", root: "/app", want: false},
		{path: "/app/../other", root: "/app", want: false},
	}
	for _, tc := range cases {
		if got := withinDir(tc.path, tc.root); got != tc.want {
			t.Errorf("withinDir(%q, %q) = %v, want %v", tc.path, tc.root, got, tc.want)
		}
	}
}
