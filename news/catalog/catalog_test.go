package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCountryCodeKnownNames(t *testing.T) {
	want := map[string]string{
		"United States":                "US",
		"United Kingdom/Great Britain": "GB",
		"Australia":                    "AU",
		"Canada":                       "CA",
		"Singapore":                    "SG",
	}
	for name, code := range want {
		got, ok := CountryCode(name)
		require.True(t, ok, name)
		require.Equal(t, code, got)
	}
	require.Len(t, CountryNames(), len(want))
}

func TestCountryCodeUnknown(t *testing.T) {
	for _, name := range []string{"", "united states", "France", "US"} {
		_, ok := CountryCode(name)
		require.False(t, ok, name)
	}
}

func TestPublicTopicHash(t *testing.T) {
	hash, ok := PublicTopicHash("Technology")
	require.True(t, ok)
	require.Equal(t, "TECHNOLOGY", hash)

	_, ok = PublicTopicHash("crypto")
	require.False(t, ok)

	require.True(t, IsPublicTopicHash("WORLD"))
	require.False(t, IsPublicTopicHash("world"))
	require.False(t, IsPublicTopicHash("CAAqJggKIiBDQkFTRWdv"))
}

func TestPublicTopicsAreCopies(t *testing.T) {
	topics := PublicTopics()
	require.Contains(t, topics, "technology")
	topics[0] = "crypto"
	require.Equal(t, "business", PublicTopics()[0])
}
