package utils

import (
	"encoding/binary"
	"fmt"
)

// WAV layout constants for generated silent tracks.
const (
	silentSampleRate = 22050
	silentChannels   = 1
	silentBitDepth   = 16
)

// BuildSilentWAV - PCM16 mono WAV of the given length filled with silence
func BuildSilentWAV(durationSeconds float64) []byte {
	if durationSeconds < 0 {
		durationSeconds = 0
	}
	sampleCount := int(durationSeconds * float64(silentSampleRate))
	dataSize := sampleCount * silentChannels * silentBitDepth / 8
	byteRate := silentSampleRate * silentChannels * silentBitDepth / 8
	blockAlign := silentChannels * silentBitDepth / 8

	buf := make([]byte, 44+dataSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], silentChannels)
	binary.LittleEndian.PutUint32(buf[24:28], silentSampleRate)
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], silentBitDepth)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	return buf
}

// WAVDuration - playback length of a PCM WAV read from its header
func WAVDuration(data []byte) (float64, error) {
	if len(data) < 44 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return 0, fmt.Errorf("not a RIFF/WAVE file")
	}

	// Walk chunks; byte rate comes from fmt, length from data.
	var byteRate uint32
	offset := 12
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8

		switch chunkID {
		case "fmt ":
			if body+16 > len(data) {
				return 0, fmt.Errorf("truncated fmt chunk")
			}
			byteRate = binary.LittleEndian.Uint32(data[body+8 : body+12])
		case "data":
			if byteRate == 0 {
				return 0, fmt.Errorf("data chunk before fmt chunk")
			}
			size := chunkSize
			if body+size > len(data) {
				size = len(data) - body
			}
			return float64(size) / float64(byteRate), nil
		}

		offset = body + chunkSize
		if chunkSize%2 == 1 {
			offset++ // chunks are word aligned
		}
	}

	return 0, fmt.Errorf("no data chunk found")
}
