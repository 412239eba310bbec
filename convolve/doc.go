// Package convolve implements the partitioned real-time FFT convolution
// core used for spatial audio rendering: reverb-style multichannel
// convolution against an arbitrary-length impulse response, and
// HRTF-driven binaural rendering with click-free cross-fades when the
// source moves.
//
// The components are layered in dependency order:
//
//	FFTPlan          owns forward/inverse real<->complex transforms
//	ThreadPool       fixed worker pool used for partition parallelism
//	ImpulseResponse  frequency-domain, per-channel, per-partition IR
//	FFTConvolver     single-partition FDL convolution primitive
//	Convolver        multi-threaded, multi-partition FDL convolver
//	HRTF, Source     (azimuth, elevation) -> IR-pair lookup, live position
//	ConvolverReader  streams a multichannel source through per-channel Convolvers
//	BinauralReader   streams a mono source through an HRTF pair with cross-fade
package convolve
