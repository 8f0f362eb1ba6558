package model

// AudioChunk represents a chunk of audio data as received from the media stream.
type AudioChunk []byte

// Frame is one unit of audio submitted to the recognizer. It may be several
// AudioChunks joined together.
type Frame []byte
