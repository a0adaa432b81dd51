package kiss

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestSingleSmallPacket(t *testing.T) {
	in := []byte{0x00, 0xC0, 0xDB, 0xFF}
	encoded := EncodePacketBytes(in)
	require.Equal(t, []byte{0xC0, 0x00, 0xDB, 0xDC, 0xDB, 0xDD, 0xFF, 0xC0}, encoded)

	packets := DecodeAllBytes(1024, encoded)
	require.Len(t, packets, 1)
	require.Equal(t, in, packets[0])
}

func TestEmptyPacketBytesRoundtrip(t *testing.T) {
	// Encoding an empty packet produces two consecutive FEND bytes. A
	// lone boundary FEND can never be distinguished from frame padding,
	// so decoding "C0 C0" is equivalent, by the idempotence invariant,
	// to decoding a single "C0": zero packets are emitted, not one
	// empty packet.
	encoded := EncodePacketBytes(nil)
	require.Equal(t, []byte{0xC0, 0xC0}, encoded)

	packets := DecodeAllBytes(1024, encoded)
	require.Empty(t, packets)
}

func TestOversizeRecovery(t *testing.T) {
	input := []byte{0xC0, 0x01, 0x02, 0x03, 0x04, 0x05, 0xC0, 0xC0, 0x0A, 0xC0}
	packets := DecodeAllBytes(4, input)
	require.Len(t, packets, 1)
	require.Equal(t, []byte{0x0A}, packets[0])
}

func TestFENDRunsAreIdempotent(t *testing.T) {
	base := EncodePacketBytes([]byte("hello"))

	var withRuns []byte
	withRuns = append(withRuns, FEND, FEND, FEND)
	withRuns = append(withRuns, base[1:]...) // drop the leading FEND already supplied by the run

	got1 := DecodeAllBytes(1024, base)
	got2 := DecodeAllBytes(1024, withRuns)
	require.Equal(t, got1, got2)
}

func TestMultiplePacketsBackToBack(t *testing.T) {
	var stream []byte
	stream = append(stream, EncodePacketBytes([]byte("ab"))...)
	stream = append(stream, EncodePacketBytes([]byte("cd"))...)
	stream = append(stream, EncodePacketBytes([]byte("ef"))...)

	packets := DecodeAllBytes(1024, stream)
	require.Equal(t, [][]byte{[]byte("ab"), []byte("cd"), []byte("ef")}, packets)
}

func TestDecodeFeedInFragments(t *testing.T) {
	full := EncodePacketBytes([]byte("fragmented payload"))
	d := NewDecoder(1024)

	var got [][]byte
	for i := 0; i < len(full); i++ {
		d.DecodeAll(full[i:i+1], func(packet []byte) {
			cp := append([]byte(nil), packet...)
			got = append(got, cp)
		})
	}
	require.Equal(t, [][]byte{[]byte("fragmented payload")}, got)
}

// RapidQC: round-trip property for every non-empty payload up to a
// generous max length. Escape-byte neutrality for every byte value is
// checked by TestEscapeByteNeutrality.
func TestRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		payload := rapid.SliceOfN(rapid.Byte(), 1, 256).Draw(rt, "payload")
		encoded := EncodePacketBytes(payload)
		packets := DecodeAllBytes(4096, encoded)
		require.Len(rt, packets, 1)
		require.Equal(rt, payload, packets[0])
	})
}

func TestEscapeByteNeutrality(t *testing.T) {
	for b := 0; b < 256; b++ {
		payload := []byte{byte(b), byte(b), byte(b)}
		encoded := EncodePacketBytes(payload)
		packets := DecodeAllBytes(1024, encoded)
		require.Lenf(t, packets, 1, "byte value %d", b)
		require.Equal(t, payload, packets[0])
	}
}

func TestConcatenatedPacketsDecodeInOrder(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(rt, "n")
		var want [][]byte
		var stream []byte
		for i := 0; i < n; i++ {
			p := rapid.SliceOfN(rapid.Byte(), 1, 32).Draw(rt, "p")
			want = append(want, p)
			stream = append(stream, EncodePacketBytes(p)...)
		}
		got := DecodeAllBytes(4096, stream)
		require.Equal(rt, want, got)
	})
}

func TestEncoderOperationSequenceErrors(t *testing.T) {
	var enc Encoder
	var sink ByteSliceSink

	err := enc.Close(&sink)
	require.Error(t, err)

	require.NoError(t, enc.Open(&sink))
	err = enc.Open(&sink)
	require.Error(t, err)
}
