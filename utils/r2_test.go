package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURLList(t *testing.T) {
	in := strings.NewReader(`# spring batch
https://example.com/gift/1

  https://example.com/gift/2
http://example.com/gift/3
`)
	urls, err := ParseURLList(in)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://example.com/gift/1",
		"https://example.com/gift/2",
		"http://example.com/gift/3",
	}, urls)
}

func TestParseURLList_RejectsInvalidLine(t *testing.T) {
	_, err := ParseURLList(strings.NewReader("https://example.com/a\nnot a url\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")

	_, err = ParseURLList(strings.NewReader("ftp://example.com/a\n"))
	assert.Error(t, err)
}

func TestR2ConfigEnabled(t *testing.T) {
	assert.False(t, R2Config{}.Enabled())
	assert.False(t, R2Config{AccountID: "acc"}.Enabled())
	assert.True(t, R2Config{AccountID: "acc", Bucket: "pools"}.Enabled())
}
