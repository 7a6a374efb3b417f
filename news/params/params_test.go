package params

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractFlags(t *testing.T) {
	cases := []struct {
		name  string
		text  string
		known []string
		want  map[string]string
	}{
		{"none", "/top_news", []string{"c"}, map[string]string{}},
		{"bare flag", "/top_news -c", []string{"c"}, map[string]string{"c": ""}},
		{"value", "/topic_news -f 2", []string{"c", "f"}, map[string]string{"f": "2"}},
		{"both", "/topic_news -c -f 10", []string{"c", "f"}, map[string]string{"c": "", "f": "10"}},
		{"multiword value", "/x -q climate change -c", []string{"q", "c"}, map[string]string{"q": "climate change", "c": ""}},
		{"unknown dropped", "/topic_news -z 5 -f 1", []string{"f"}, map[string]string{"f": "1"}},
		{"negative number is a value", "/topic_news -f -3", []string{"f"}, map[string]string{"f": "-3"}},
		{"non word token is a value", "/topic_news -f x=1", []string{"f"}, map[string]string{"f": "x=1"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ExtractFlags(tc.text, tc.known...))
		})
	}
}

func TestValidateWhen(t *testing.T) {
	for _, ok := range []string{"12h", "5d", "2m", "100d"} {
		require.NoError(t, ValidateWhen(ok), ok)
	}
	for _, bad := range []string{"12", "h5", "", "5x", "0d", " 5d", "-1d", "5D"} {
		require.ErrorIs(t, ValidateWhen(bad), ErrInvalidWhen, bad)
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	require.NoError(t, err)
	require.Equal(t, 29, d.Day())

	for _, bad := range []string{"2024-2-1", "01-02-2024", "2024/01/02", "2023-02-29", ""} {
		_, err := ParseDate(bad)
		require.ErrorIs(t, err, ErrInvalidDate, bad)
	}
}

func TestValidateRange(t *testing.T) {
	require.ErrorIs(t, ValidateRange("2024-02-01", "2024-01-01"), ErrDateRange)
	require.NoError(t, ValidateRange("2024-01-01", "2024-02-01"))
	require.NoError(t, ValidateRange("2024-01-01", "2024-01-01"))
	require.ErrorIs(t, ValidateRange("2024-01-01", "tomorrow"), ErrInvalidDate)
}

func TestParseDays(t *testing.T) {
	n, err := ParseDays("2")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = ParseDays("-3")
	require.NoError(t, err)
	require.Zero(t, n)

	for _, bad := range []string{"", "two", "1.5"} {
		_, err := ParseDays(bad)
		require.ErrorIs(t, err, ErrInvalidDays, bad)
	}
}
