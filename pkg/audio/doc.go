// Package audio is an umbrella for the audio sub-packages:
//
//   - pcm: 16-bit PCM sample buffer helpers
//   - resampler: streaming sample-rate conversion
//   - opusio: opus encode/decode for the device pipelines
package audio
