// Package fsk implements frequency-shift keying modulation and demodulation
// for transporting small binary payloads over sound.
//
// Payloads are framed as preamble | length | payload | crc16 | postamble and
// modulated as mark/space sine tones, one tone per bit. Demodulation uses a
// Goertzel filter per frequency to classify each bit window, after locating
// the alternating preamble with half-bit scan resolution.
//
// The package is pure signal processing over float32 sample slices in the
// range [-1.0, 1.0]; audio hardware access lives in the audio and modem
// packages. All operations are deterministic: the same payload and Config
// always produce identical samples.
package fsk
