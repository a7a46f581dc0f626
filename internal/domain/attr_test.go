package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttrValue_AsText(t *testing.T) {
	s, err := TextAttr("Sea level anomaly\x00").AsText()
	require.NoError(t, err)
	assert.Equal(t, "Sea level anomaly", s)

	_, err = NumberAttr(0.0001).AsText()
	require.ErrorIs(t, err, ErrNotText)
	assert.Contains(t, err.Error(), "[0.0001]")
}
