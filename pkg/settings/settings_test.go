package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForm(t *testing.T) {
	var f Form
	assert.Equal(t, "", f.Value())

	for _, s := range []string{"h", "ht", "http://10.0.0.9:5000", ""} {
		f.Set(s)
		assert.Equal(t, s, f.Value())
	}

	f.Set("not a url at all")
	assert.Equal(t, "not a url at all", f.Value())
}
