package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want ResourceID
	}{
		{"short link", "https://youtu.be/dQw4w9WgXcQ", "https://www.youtube.com/watch?v=dQw4w9WgXcQ"},
		{"short link with query", "https://youtu.be/dQw4w9WgXcQ?t=42", "https://www.youtube.com/watch?v=dQw4w9WgXcQ"},
		{"canonical", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "https://www.youtube.com/watch?v=dQw4w9WgXcQ"},
		{"canonical extra params", "https://youtube.com/watch?list=PL1&v=dQw4w9WgXcQ&t=10", "https://www.youtube.com/watch?v=dQw4w9WgXcQ"},
		{"mobile host", "https://m.youtube.com/watch?v=abc123", "https://www.youtube.com/watch?v=abc123"},
		{"music host", "https://music.youtube.com/watch?v=abc123", "https://www.youtube.com/watch?v=abc123"},
		{"surrounding whitespace", "  https://youtu.be/abc123 \n", "https://www.youtube.com/watch?v=abc123"},
		{"canonical without v", "https://www.youtube.com/feed/trending", "https://www.youtube.com/feed/trending"},
		{"short link without id", "https://youtu.be/", "https://youtu.be/"},
		{"short link without scheme", "youtu.be/ABC123", "https://www.youtube.com/watch?v=ABC123"},
		{"canonical without scheme", "www.youtube.com/watch?v=ABC123", "https://www.youtube.com/watch?v=ABC123"},
		{"bare canonical without scheme", "youtube.com/watch?v=ABC123", "https://www.youtube.com/watch?v=ABC123"},
		{"upper-case host without scheme", "YouTu.be/ABC123", "https://www.youtube.com/watch?v=ABC123"},
		{"canonical without scheme or v", "youtube.com/feed/trending", "youtube.com/feed/trending"},
		{"unrelated host without scheme", "example.com/watch?v=ABC123", "example.com/watch?v=ABC123"},
		{"unrelated host", "https://example.com/video.mp4", "https://example.com/video.mp4"},
		{"not a url", "hello world", "hello world"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeURL(tt.raw))
		})
	}
}

func TestNormalizeURL_Idempotent(t *testing.T) {
	inputs := []string{
		"https://youtu.be/dQw4w9WgXcQ",
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://www.youtube.com/watch?v=a%26b",
		"https://youtu.be/a%23b",
		"https://example.com/x?y=1",
		"garbage",
		"youtu.be/ABC123",
		"youtube.com/feed/trending",
	}

	for _, in := range inputs {
		once := NormalizeURL(in)
		twice := NormalizeURL(string(once))
		assert.Equal(t, once, twice, "input %q", in)
	}
}

func TestNormalizeURL_ShortAndCanonicalAgree(t *testing.T) {
	assert.Equal(t,
		NormalizeURL("https://youtu.be/XYZ"),
		NormalizeURL("https://www.youtube.com/watch?v=XYZ"))
}

func TestResourceID_VideoID(t *testing.T) {
	assert.Equal(t, "dQw4w9WgXcQ", NormalizeURL("https://youtu.be/dQw4w9WgXcQ").VideoID())
	assert.Equal(t, "a&b", NormalizeURL("https://www.youtube.com/watch?v=a%26b").VideoID())
	assert.Equal(t, "", NormalizeURL("https://example.com/").VideoID())

	assert.True(t, NormalizeURL("https://youtu.be/abc").IsCanonical())
	assert.False(t, NormalizeURL("opaque").IsCanonical())
}
