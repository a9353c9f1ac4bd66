// Package thumbnails renders preview images for ingested model files. Each
// source image gets two renditions: a small grid thumbnail and a larger
// detail view, both aspect-fit inside fixed bounding boxes.
//
// libvips does the heavy lifting when it is available, exporting WebP with
// decode-time shrinking. When vips is not initialized the generator falls
// back to pure-Go decoding and JPEG output, so thumbnail generation degrades
// rather than failing outright.
package thumbnails
