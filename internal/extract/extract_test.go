package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractEmails_NormalizesDedupesAndSorts(t *testing.T) {
	t.Parallel()

	got := ExtractEmails("Write to Zed@Cafe.com or A@X.com, also a@x.com and  b@x.io ")
	assert.Equal(t, []string{"a@x.com", "b@x.io", "zed@cafe.com"}, got)
}

func TestExtractEmails_RejectsShortTLD(t *testing.T) {
	t.Parallel()

	assert.Empty(t, ExtractEmails("user@host.c"))
	assert.Empty(t, ExtractEmails("no addresses here"))
}

func TestParseContactPage_CaseInsensitiveDedup(t *testing.T) {
	t.Parallel()

	ex, err := ParseContactPage(`<html><body><p>A@X.com</p><p>a@x.com</p></body></html>`)
	require.NoError(t, err)
	assert.Equal(t, []string{"a@x.com"}, ex.Emails)
	assert.Contains(t, ex.EmailToName, "a@x.com")
}

func TestParseContactPage_AdjacentElementsDoNotGlue(t *testing.T) {
	t.Parallel()

	ex, err := ParseContactPage(`<div><span>hello@cafe.com</span><span>Contact</span></div>`)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello@cafe.com"}, ex.Emails)
}

func TestParseContactPage_InfersOwnerFromPrecedingCaption(t *testing.T) {
	t.Parallel()

	ex, err := ParseContactPage(`<p><strong>Jane Doe</strong> - jane@cafe.com</p>`)
	require.NoError(t, err)
	require.Equal(t, []string{"jane@cafe.com"}, ex.Emails)
	name := ex.EmailToName["jane@cafe.com"]
	require.NotNil(t, name)
	assert.Equal(t, "Jane Doe", *name)
}

func TestParseContactPage_NameAbsentWhenNoCaption(t *testing.T) {
	t.Parallel()

	ex, err := ParseContactPage(`<p>Contact Jane Doe - jane@cafe.com</p>`)
	require.NoError(t, err)
	require.Equal(t, []string{"jane@cafe.com"}, ex.Emails)
	name, ok := ex.EmailToName["jane@cafe.com"]
	assert.True(t, ok)
	if name != nil {
		assert.Equal(t, "Jane Doe", *name)
	}
}

func TestParseContactPage_RejectsLongCaption(t *testing.T) {
	t.Parallel()

	ex, err := ParseContactPage(`<p><span>Please reach out to our friendly team any time</span> info@cafe.com</p>`)
	require.NoError(t, err)
	assert.Nil(t, ex.EmailToName["info@cafe.com"])
}

func TestParseContactPage_StripsSeparators(t *testing.T) {
	t.Parallel()

	ex, err := ParseContactPage(`<li><b>Owner:</b> <i>Mark</i>: MARK@Cafe.com</li>`)
	require.NoError(t, err)
	name := ex.EmailToName["mark@cafe.com"]
	require.NotNil(t, name)
	assert.Equal(t, "Owner: Mark", *name)
}

func TestParseContactPage_FirstCaptionWins(t *testing.T) {
	t.Parallel()

	ex, err := ParseContactPage(`<div>
<p><b>Ana</b> ana@cafe.com</p>
<p><b>Someone Else</b> ana@cafe.com</p>
</div>`)
	require.NoError(t, err)
	name := ex.EmailToName["ana@cafe.com"]
	require.NotNil(t, name)
	assert.Equal(t, "Ana", *name)
}

func TestExtractor_CustomWordWindow(t *testing.T) {
	t.Parallel()

	e := New(Options{MinNameWords: 2, MaxNameWords: 2})
	ex, err := e.Parse(`<div><p><b>Ana</b> ana@cafe.com</p><p><b>Bo Li</b> bo@cafe.com</p></div>`)
	require.NoError(t, err)
	assert.Nil(t, ex.EmailToName["ana@cafe.com"])
	require.NotNil(t, ex.EmailToName["bo@cafe.com"])
	assert.Equal(t, "Bo Li", *ex.EmailToName["bo@cafe.com"])
}

func TestNew_AppliesDefaults(t *testing.T) {
	t.Parallel()

	e := New(Options{})
	assert.Equal(t, DefaultOptions(), e.opts)
}

func TestParseContactPage_MalformedMarkup(t *testing.T) {
	t.Parallel()

	ex, err := ParseContactPage(`<div><p>hi@cafe.com<a href="https://instagram.com/beans">`)
	require.NoError(t, err)
	assert.Equal(t, []string{"hi@cafe.com"}, ex.Emails)
	assert.Equal(t, []string{"beans"}, ex.SocialLinks["instagram_handle"])
}

func TestParseContactPage_Empty(t *testing.T) {
	t.Parallel()

	ex, err := ParseContactPage("")
	require.NoError(t, err)
	assert.Empty(t, ex.Emails)
	assert.Empty(t, ex.EmailToName)
	assert.Empty(t, ex.SocialLinks)
}
