package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/blog/post/", "/blog/post/"},
		{"/Blog//Post", "/blog/post/"},
		{"blog/post", "/blog/post/"},
		{"/blog/post/?utm_source=x&y=/z", "/blog/post/"},
		{"/blog/post/#comments", "/blog/post/"},
		{"/", "/"},
		{"///", "/"},
		{"/?page=1", "/"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := PageURL(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			again, err := PageURL(got)
			require.NoError(t, err)
			assert.Equal(t, got, again)
		})
	}
}

func TestPageURLEmpty(t *testing.T) {
	for _, in := range []string{"", "?a=b", "   ", "#top"} {
		_, err := PageURL(in)
		assert.ErrorIs(t, err, ErrEmptyPage, in)
	}
}

func TestEmailHash(t *testing.T) {
	// sha256("test@example.com")
	const want = "973DFE463EC85785F5F95AF5BA3906EEDB2D931C24E69824A89EA65DBA4E813B"

	assert.Equal(t, want, EmailHash("test@example.com"))
	assert.Equal(t, want, EmailHash(" Test@Example.COM "))
	assert.Equal(t, "test@example.com", Email("TEST@example.com"))
}
