// Package fixture is the device side of the bridge: the capability the
// dispatch pipeline forwards RGB values to, and the Magic Home (Zengge /
// flux_led family) adapter implementing it over the bulb's TCP protocol.
package fixture

// Fixture applies color to a networked light. Pixel indices are zero-based;
// a plain RGB bulb only has pixel 0.
type Fixture interface {
	ApplyRGB(pixel int, r, g, b uint8) error
}

// FixtureFunc adapts a function to the Fixture interface.
type FixtureFunc func(pixel int, r, g, b uint8) error

func (f FixtureFunc) ApplyRGB(pixel int, r, g, b uint8) error {
	return f(pixel, r, g, b)
}
