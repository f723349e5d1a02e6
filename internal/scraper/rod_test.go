package scraper

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectOrKill(t *testing.T) {
	killed := 0
	kill := func() { killed++ }

	assert.NoError(t, connectOrKill(func() error { return nil }, kill))
	assert.Zero(t, killed)

	refused := errors.New("websocket: bad handshake")
	err := connectOrKill(func() error { return refused }, kill)
	assert.ErrorIs(t, err, refused)
	assert.Equal(t, 1, killed, "launched browser must be killed when connecting fails")
}
