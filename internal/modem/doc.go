// Package modem drives real-time acoustic transfer of FSK frames. A
// Transmitter streams encoded samples to a playback device in cancellable
// chunks; a Receiver gates on signal energy, captures one frame, and hands
// it to the codec. Both are small state machines built for reuse: one
// instance serves many operations, with at most one in flight at a time.
//
// Cancellation is cooperative. A stop flag is checked between chunks, so
// worst-case stop latency is about one chunk of audio. Device streams are
// owned by the operation that opened them and released on every exit path.
package modem
