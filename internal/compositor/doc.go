// Package compositor turns an ordered list of acquired checkpoints into the
// frames of a pan-and-zoom time-lapse.
//
// Rendering walks the frames once, in image-name order: an initial hold of
// the whole session region, then for every later frame a cross-faded
// transition between the previous and current zoom windows followed by one
// settled frame, and a final hold on the last settled frame. Frames are drawn
// by a producer goroutine into a pool of two canvases and handed to the sink
// over a single-slot channel, so at most two output rasters exist at once.
// Holds are a single frame with a repeat count. Pixel content depends only on
// the inputs, never on timing.
package compositor
