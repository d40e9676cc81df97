package canlink

// CRC8 frame trailer (table-driven, poly=0x07 MSB-first, init=0x55, no xorout).
// Every stuffed frame carries this checksum over the unstuffed payload as its
// final byte.

var crc8Table [256]uint8

func init() {
	const poly = 0x07
	for i := 0; i < 256; i++ {
		crc := uint8(i)
		for bit := 0; bit < 8; bit++ {
			if crc&0x80 != 0 {
				crc = (crc << 1) ^ poly
			} else {
				crc <<= 1
			}
		}
		crc8Table[i] = crc
	}
}

// crc8Init seeds the register. The checksum of an empty payload is this value.
const crc8Init uint8 = 0x55

// Crc8 is a streaming CRC8 register.
type Crc8 struct {
	reg uint8
}

// NewCrc8 returns a register seeded for a fresh payload.
func NewCrc8() *Crc8 {
	return &Crc8{reg: crc8Init}
}

// Update folds data into the register.
func (c *Crc8) Update(data []byte) {
	for _, b := range data {
		c.reg = crc8Table[c.reg^b]
	}
}

// Sum returns the checksum of everything folded in so far.
func (c *Crc8) Sum() uint8 {
	return c.reg
}

// Checksum computes the CRC8 of data in one shot.
func Checksum(data []byte) uint8 {
	crc := crc8Init
	for _, b := range data {
		crc = crc8Table[crc^b]
	}
	return crc
}
