package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToJSON(t *testing.T) {
	assert.Equal(t, "null", string(toJSON(nil)))
	assert.JSONEq(t, `{"a":1}`, string(toJSON(map[string]int{"a": 1})))
	assert.Equal(t, "null", string(toJSON(make(chan int))), "unmarshalable values fall back to null")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ñañ", truncate("ñañaña", 3))
}
