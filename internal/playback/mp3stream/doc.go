// Package mp3stream implements playback.Element for MP3 audio served over
// HTTP. The file is fetched into memory, decoded with go-mp3, and the PCM is
// written to a sink in real time, one tick at a time, so time updates track
// what has actually been played.
package mp3stream
