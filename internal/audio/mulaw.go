package audio

// SilenceCode is the telephony byte emitted for sub-midpoint samples.
const SilenceCode = 0x7F

// EncodeForTelephony converts 8-bit unsigned PCM samples from the synthesis
// service into the 8kHz 8-bit µ-law-style stream Twilio expects. The mapping
// is a coarse approximation of µ-law companding: samples below the unsigned
// midpoint become the silence code, samples at or above it scale from the
// silence code by half their distance above the midpoint.
//
// TODO: replace with proper G.711 µ-law companding; the current mapping is a
// placeholder inherited from the first field trial.
func EncodeForTelephony(pcm []byte) []byte {
	out := make([]byte, len(pcm))
	for i, b := range pcm {
		if b < 0x80 {
			out[i] = SilenceCode
		} else {
			out[i] = SilenceCode + (b-0x80)/2
		}
	}
	return out
}
