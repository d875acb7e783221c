package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifySocialLink(t *testing.T) {
	t.Parallel()

	tests := []struct {
		href      string
		wantField string
		wantValue string
		wantOK    bool
	}{
		{"https://www.facebook.com/beans", "facebook_url", "https://www.facebook.com/beans", true},
		{"https://fb.com/beans", "facebook_url", "https://fb.com/beans", true},
		{"https://www.instagram.com/beans_cafe/", "instagram_handle", "beans_cafe", true},
		{"https://instagram.com/", "", "", false},
		{"https://twitter.com/beans", "twitter_url", "https://twitter.com/beans", true},
		{"https://x.com/beans", "twitter_url", "https://x.com/beans", true},
		{"https://www.YELP.com/biz/beans", "yelp_url", "https://www.YELP.com/biz/beans", true},
		{"/contact", "", "", false},
		{"mailto:jane@cafe.com", "", "", false},
		{"https://example.org/menu", "", "", false},
		{"http://[::1", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.href, func(t *testing.T) {
			t.Parallel()
			field, value, ok := ClassifySocialLink(tt.href)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantField, field)
			assert.Equal(t, tt.wantValue, value)
		})
	}
}

func TestParseContactPage_SocialBucketsKeepDocumentOrder(t *testing.T) {
	t.Parallel()

	page := `<html><body>
<a href="https://facebook.com/first">fb</a>
<a href="https://instagram.com/beans/">ig</a>
<a href="https://fb.com/second">fb2</a>
<a href="https://facebook.com/first">fb again</a>
<a href="https://yelp.com/biz/beans">yelp</a>
<a href="/menu">menu</a>
</body></html>`

	ex, err := ParseContactPage(page)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://facebook.com/first",
		"https://fb.com/second",
		"https://facebook.com/first",
	}, ex.SocialLinks["facebook_url"])
	assert.Equal(t, []string{"beans"}, ex.SocialLinks["instagram_handle"])
	assert.Equal(t, []string{"https://yelp.com/biz/beans"}, ex.SocialLinks["yelp_url"])
	assert.NotContains(t, ex.SocialLinks, "twitter_url")
}
