package channels

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyMetaCodes(t *testing.T) {
	cases := []struct {
		name string
		code int
		msg  string
		want ErrorKind
	}{
		{"expired token", 190, "Error validating access token: session has expired", KindAuth},
		{"permission family", 200, "requires publish_actions", KindAuth},
		{"app rate limit", 4, "Application request limit reached", KindRateLimit},
		{"param validation", 100, "Invalid parameter", KindValidate},
		{"api unknown", 1, "An unknown error occurred", KindTransient},
		{"falls back to message", 9999, "Error validating access token", KindAuth},
		{"nothing matches", 9999, "weird platform hiccup", KindUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ClassifyMeta(tc.code, tc.msg))
		})
	}
}

func TestClassifyMessageSignatures(t *testing.T) {
	require.Equal(t, KindAuth, ClassifyMessage("The Token Has Been Revoked by the user"))
	require.Equal(t, KindRateLimit, ClassifyMessage("too many requests, slow down"))
	require.Equal(t, KindTransient, ClassifyMessage("service temporarily unavailable, please retry"))
	require.Equal(t, KindUnknown, ClassifyMessage(""))
}

func TestIsAuthError(t *testing.T) {
	require.True(t, IsAuthError("Invalid OAuth access token."))
	require.False(t, IsAuthError("image exceeds maximum size"))
}

func TestChannelProviderMapping(t *testing.T) {
	require.Equal(t, "facebook", Facebook.Provider())
	require.Equal(t, "instagram", InstagramFeed.Provider())
	require.Equal(t, "instagram", InstagramStory.Provider())
	require.Equal(t, "linkedin", LinkedIn.Provider())
	require.Equal(t, "", Channel("tiktok").Provider())
}

func TestParseList(t *testing.T) {
	require.Equal(t,
		[]Channel{Facebook, InstagramFeed},
		ParseList("facebook, instagram_feed,"),
	)
	require.Empty(t, ParseList(""))
}
