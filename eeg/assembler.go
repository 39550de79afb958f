package eeg

// Chunk is an immutable snapshot of SamplesPerChunk consecutive samples.
// StartIndex is the sample index of Samples[0]; it wraps with the uint16
// sample counter.
type Chunk struct {
	StartIndex uint16
	Samples    [SamplesPerChunk]Sample
}

// ChunkAssembler accumulates samples into a working buffer and snapshots it
// into a Chunk once full. The working buffer is owned exclusively by the
// assembler; partial buffers are discarded on reset, never flushed.
type ChunkAssembler struct {
	buf  [SamplesPerChunk]Sample
	fill int
}

// Append stores one sample at the current fill position.
func (a *ChunkAssembler) Append(s Sample) {
	a.buf[a.fill] = s
	a.fill++
}

// Full reports whether the working buffer holds a complete chunk.
func (a *ChunkAssembler) Full() bool {
	return a.fill >= SamplesPerChunk
}

// Fill returns the current fill position.
func (a *ChunkAssembler) Fill() int {
	return a.fill
}

// Reset discards the working buffer contents.
func (a *ChunkAssembler) Reset() {
	a.fill = 0
}

// Emit snapshots the full buffer into a Chunk and resets the fill position.
// sampleCounter is the running counter after the last Append, so the chunk
// starts at sampleCounter - SamplesPerChunk.
func (a *ChunkAssembler) Emit(sampleCounter uint16) Chunk {
	chunk := Chunk{
		StartIndex: sampleCounter - SamplesPerChunk,
		Samples:    a.buf,
	}
	a.fill = 0
	return chunk
}
