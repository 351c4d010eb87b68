// Package audio fixes the mesh audio format: G.722 at 8 kHz mono with packed
// 6-bit samples. Every client encodes and decodes with the same parameters.
package audio

import (
	g722 "github.com/gotranspile/g722"
)

const (
	SampleRate = 8000
	Channels   = 1

	g722Bitrate       = g722.Rate48000
	g722BitsPerSample = 6
	g722Options       = g722.FlagSampleRate8000 | g722.FlagPacked
)

type Encoder struct {
	enc *g722.Encoder
}

func NewEncoder() *Encoder {
	return &Encoder{enc: g722.NewEncoder(g722Bitrate, g722Options)}
}

// Encode returns the G.722 payload for one PCM frame, or nil when the frame
// is empty or the codec produced nothing.
func (e *Encoder) Encode(pcm []int16) []byte {
	if len(pcm) == 0 {
		return nil
	}
	buf := make([]byte, (len(pcm)*g722BitsPerSample+7)/8)
	n := e.enc.Encode(buf, pcm)
	if n <= 0 {
		return nil
	}
	return buf[:n]
}

type Decoder struct {
	dec *g722.Decoder
}

func NewDecoder() *Decoder {
	return &Decoder{dec: g722.NewDecoder(g722Bitrate, g722Options)}
}

// Decode converts one G.722 payload back to PCM.
func (d *Decoder) Decode(payload []byte) []int16 {
	if len(payload) == 0 {
		return nil
	}
	pcm := make([]int16, len(payload)*8/g722BitsPerSample+8)
	n := d.dec.Decode(pcm, payload)
	if n <= 0 {
		return nil
	}
	return pcm[:n]
}
