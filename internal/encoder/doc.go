// Package encoder turns the compositor's frame stream into animation files.
//
// A Sink receives one raster at a time together with a repeat count and
// never keeps a reference to it. FFmpegSink pipes raw RGBA into ffmpeg for
// H.264 MP4 output, GIFSink writes a streaming GIF without ffmpeg, and
// FrameDumpSink stores every logical frame as a numbered PNG. MultiSink fans
// a stream out to several sinks. Transcode converts a finished container to
// MP4 with even dimensions, and ArchiveAV1 hands the result to the drapto
// library for an AV1 archive copy.
package encoder
