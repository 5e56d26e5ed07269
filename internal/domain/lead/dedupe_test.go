package lead

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWebsiteKey(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		ok       bool
	}{
		{
			name:     "plain domain",
			input:    "cafe-luna.de",
			expected: "domain:cafe-luna.de",
			ok:       true,
		},
		{
			name:     "full url with www and path",
			input:    "http://www.Cafe-Luna.de/menu",
			expected: "domain:cafe-luna.de",
			ok:       true,
		},
		{
			name:     "subdomain collapses to registrable domain",
			input:    "https://shop.example.co.uk",
			expected: "domain:example.co.uk",
			ok:       true,
		},
		{
			name:  "empty",
			input: "",
			ok:    false,
		},
		{
			name:  "bare tld",
			input: "com",
			ok:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, ok := WebsiteKey(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, key)
		})
	}
}

func TestPhoneKey(t *testing.T) {
	key, ok := PhoneKey("+49 (030) 1234-567")
	assert.True(t, ok)
	assert.Equal(t, "phone:490301234567", key)

	_, ok = PhoneKey("123")
	assert.False(t, ok)

	_, ok = PhoneKey("")
	assert.False(t, ok)
}

func TestHandleKey(t *testing.T) {
	key, ok := HandleKey(" @Cafe_Luna ")
	assert.True(t, ok)
	assert.Equal(t, "ig:cafe_luna", key)

	_, ok = HandleKey("@")
	assert.False(t, ok)
}

func TestDedupeKey_Precedence(t *testing.T) {
	key, ok := DedupeKey("cafe-luna.de", "+4903012345", "@cafeluna")
	assert.True(t, ok)
	assert.Equal(t, "domain:cafe-luna.de", key, "website wins over phone and handle")

	key, ok = DedupeKey("", "+4903012345", "@cafeluna")
	assert.True(t, ok)
	assert.Equal(t, "phone:4903012345", key)

	key, ok = DedupeKey("", "", "@cafeluna")
	assert.True(t, ok)
	assert.Equal(t, "ig:cafeluna", key)

	_, ok = DedupeKey("", "", "")
	assert.False(t, ok)
}

func TestCacheKey(t *testing.T) {
	tenant := "9f2c6e0a-0a6a-43bc-a6b0-8a3f2c1d9e4f"
	assert.Equal(t, "t:"+tenant+":domain:x.com", CacheKey(&tenant, "domain:x.com"))
	assert.Equal(t, "g:domain:x.com", CacheKey(nil, "domain:x.com"))

	empty := ""
	assert.Equal(t, "g:domain:x.com", CacheKey(&empty, "domain:x.com"))
}
