package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, DefaultLimit, NormalizeLimit(-3))
	assert.Equal(t, 10, NormalizeLimit(10))
	assert.Equal(t, MaxLimit, NormalizeLimit(MaxLimit+1))
}

func TestFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/?limit=5&offset=20", nil)
	params := FromRequest(r)
	assert.Equal(t, 5, params.Limit)
	assert.Equal(t, 20, params.Offset)

	r = httptest.NewRequest("GET", "/?limit=junk&offset=-4", nil)
	params = FromRequest(r)
	assert.Equal(t, DefaultLimit, params.Limit)
	assert.Equal(t, 0, params.Offset)
}
