package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRun(t *testing.T) {
	var stderr bytes.Buffer
	assert.Equal(t, 0, run(func() error { return nil }, &stderr))
	assert.Empty(t, stderr.String())

	code := run(func() error { return errors.New("conf.New -> missing POSTGRES_HOST") }, &stderr)
	assert.Equal(t, 1, code)
	assert.Equal(t, "vecollab: conf.New -> missing POSTGRES_HOST\n", stderr.String())
}
