package s3

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectKeyKeepsExtension(t *testing.T) {
	a := ObjectKey("Lamp.JPG")
	b := ObjectKey("Lamp.JPG")

	assert.True(t, strings.HasPrefix(a, "images/"))
	assert.True(t, strings.HasSuffix(a, ".jpg"))
	assert.NotEqual(t, a, b)
	assert.Len(t, strings.TrimSuffix(strings.TrimPrefix(a, "images/"), ".jpg"), 36)
}

func TestObjectKeyWithoutExtension(t *testing.T) {
	k := ObjectKey("photo")
	assert.Len(t, k, len("images/")+36)
}
