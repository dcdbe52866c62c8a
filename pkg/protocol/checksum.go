package protocol

// Fletcher16 computes the Fletcher-16 checksum over data.
//
// Both accumulators are reduced modulo 255 after every input byte. The
// result is stored high accumulator first, [sum2, sum1] -- the order the
// bridge device expects on the wire. The algorithm is not symmetric, so
// the byte order matters.
func Fletcher16(data []byte) [2]byte {
	var sum1, sum2 uint16
	for _, b := range data {
		sum1 = (sum1 + uint16(b)) % 255
		sum2 = (sum2 + sum1) % 255
	}
	return [2]byte{byte(sum2), byte(sum1)}
}

// VerifyFletcher16 reports whether checksum matches the Fletcher-16
// checksum of data.
func VerifyFletcher16(data []byte, checksum [2]byte) bool {
	return Fletcher16(data) == checksum
}
