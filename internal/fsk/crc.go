package fsk

// CRC-16/CCITT-FALSE: polynomial 0x1021, initial value 0xFFFF, no input or
// output reflection, no final XOR. Check value over "123456789" is 0x29B1.
const (
	crcPolynomial = 0x1021
	crcInitial    = 0xFFFF
)

// Checksum computes the CRC-16 over data as carried in the frame trailer.
func Checksum(data []byte) uint16 {
	crc := uint16(crcInitial)
	for _, b := range data {
		crc = crcUpdate(crc, b)
	}
	return crc
}

func crcUpdate(crc uint16, b byte) uint16 {
	crc ^= uint16(b) << 8
	for i := 0; i < 8; i++ {
		if crc&0x8000 != 0 {
			crc = crc<<1 ^ crcPolynomial
		} else {
			crc <<= 1
		}
	}
	return crc
}
