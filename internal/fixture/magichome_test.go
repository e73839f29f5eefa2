package fixture

import (
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBulb accepts one connection and reports every n-byte frame it reads.
func fakeBulb(t *testing.T) (addr string, frames chan []byte) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	frames = make(chan []byte, 16)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			// Color frames are 8 bytes, power frames 4. Read the opcode
			// first, then the rest of the frame.
			head := make([]byte, 1)
			if _, err := io.ReadFull(conn, head); err != nil {
				return
			}
			rest := 3 // power frame
			if head[0] == cmdSetColor || head[0] == cmdSetQuick {
				rest = 7
			}
			frame := make([]byte, 1+rest)
			frame[0] = head[0]
			if _, err := io.ReadFull(conn, frame[1:]); err != nil {
				return
			}
			frames <- frame
		}
	}()

	return ln.Addr().String(), frames
}

func TestBulb_ApplyRGB(t *testing.T) {
	addr, frames := fakeBulb(t)
	bulb, err := NewBulb(BulbConfig{Addr: addr})
	require.NoError(t, err)
	defer bulb.Close()

	require.NoError(t, bulb.ApplyRGB(0, 10, 20, 30))

	frame := <-frames
	assert.Equal(t, []byte{0x41, 10, 20, 30, 0x00, 0x00, 0x0f, 0x8c}, frame)
}

func TestBulb_ApplyRGB_Persist(t *testing.T) {
	addr, frames := fakeBulb(t)
	bulb, err := NewBulb(BulbConfig{Addr: addr, Persist: true})
	require.NoError(t, err)
	defer bulb.Close()

	require.NoError(t, bulb.ApplyRGB(0, 255, 0, 0))

	frame := <-frames
	assert.Equal(t, byte(0x31), frame[0])
}

func TestBulb_ApplyRGB_PixelOutOfRange(t *testing.T) {
	bulb, err := NewBulb(BulbConfig{Addr: "127.0.0.1"})
	require.NoError(t, err)

	assert.Error(t, bulb.ApplyRGB(1, 1, 2, 3))
}

func TestBulb_Power(t *testing.T) {
	addr, frames := fakeBulb(t)
	bulb, err := NewBulb(BulbConfig{Addr: addr})
	require.NoError(t, err)
	defer bulb.Close()

	require.NoError(t, bulb.PowerOn())
	assert.Equal(t, []byte{0x71, 0x23, 0x0f, 0xa3}, <-frames)

	require.NoError(t, bulb.PowerOff())
	assert.Equal(t, []byte{0x71, 0x24, 0x0f, 0xa4}, <-frames)
}

func TestBulb_DefaultPort(t *testing.T) {
	bulb, err := NewBulb(BulbConfig{Addr: "192.168.1.50"})
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.50:5577", bulb.Addr())

	bulb, err = NewBulb(BulbConfig{Addr: "192.168.1.50:1234"})
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.50:1234", bulb.Addr())
}

func TestBulb_NoAddr(t *testing.T) {
	_, err := NewBulb(BulbConfig{})
	assert.Error(t, err)
}

func TestBulb_DialBackoff(t *testing.T) {
	// Grab a port nothing is listening on.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	bulb, err := NewBulb(BulbConfig{Addr: addr})
	require.NoError(t, err)

	err = bulb.ApplyRGB(0, 1, 2, 3)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBackoff)

	// Immediately after a failed dial, writes are refused without dialing.
	err = bulb.ApplyRGB(0, 1, 2, 3)
	assert.ErrorIs(t, err, ErrBackoff)
}

func TestAppendChecksum(t *testing.T) {
	assert.Equal(t, []byte{0x71, 0x23, 0x0f, 0xa3}, appendChecksum([]byte{0x71, 0x23, 0x0f}))
	// Checksum wraps at 8 bits
	assert.Equal(t, []byte{0xff, 0xff, 0xfe}, appendChecksum([]byte{0xff, 0xff}))
}
