package drivers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.einride.tech/can"
)

func TestFormatFrame(t *testing.T) {
	frame := can.Frame{ID: 0x7E8, Length: 3, Data: can.Data{0x62, 0x01, 0xFF}}
	assert.Equal(t, "2024,98,1,255", FormatFrame(frame))

	assert.Equal(t, "16", FormatFrame(can.Frame{ID: 0x10}))
}

func TestCANMissingInterface(t *testing.T) {
	_, err := NewCAN("definitely-not-a-can-iface", nil).Open(context.Background(), PortConfig{})
	assert.ErrorIs(t, err, ErrTransportUnavailable)
}
