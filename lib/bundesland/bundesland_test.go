package bundesland

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	testCases := []struct {
		input string
		code  Code
		ok    bool
	}{
		{"Berlin", BE, true},
		{"berlin", BE, true},
		{"BE", BE, true},
		{"be", BE, true},
		{"Bavaria", BY, true},
		{"Bayern", BY, true},
		{"bAyErN", BY, true},
		{"North Rhine-Westphalia", NW, true},
		{"north rhine westphalia", NW, true},
		{"Nordrhein-Westfalen", NW, true},
		{"Baden-Württemberg", BW, true},
		{"baden-wuerttemberg", BW, true},
		{"baden wuerttemberg", BW, true},
		{"Thüringen", TH, true},
		{"thueringen", TH, true},
		{"Thuringia", TH, true},
		{"Thuringen", TH, true},
		{"  Hamburg  ", HH, true},
		{"Lower Saxony", NI, true},
		{"unknowncity", "", false},
		{"", "", false},
		{"B", "", false},
	}

	for _, test := range testCases {
		code, ok := Resolve(test.input)
		require.Equal(t, test.ok, ok, "input: %q", test.input)
		if test.ok {
			require.Equal(t, test.code, code, "input: %q", test.input)
		}
	}
}

func TestResolveEveryCode(t *testing.T) {
	for _, s := range List() {
		code, ok := Resolve(string(s.Code))
		require.True(t, ok)
		require.Equal(t, s.Code, code)

		code, ok = Resolve(s.NameDE)
		require.True(t, ok)
		require.Equal(t, s.Code, code)
	}
}

func TestList(t *testing.T) {
	list := List()
	require.Len(t, list, 16)
	require.Equal(t, BW, list[0].Code)
	require.Equal(t, "Baden-Württemberg", list[0].NameDE)
	require.Equal(t, TH, list[15].Code)
}

func TestFormField(t *testing.T) {
	require.Equal(t, "bundeslandBE", FormField(BE))
}
