// Package vision provides the numerical image primitives used by the
// retrieval engine: edge and contour extraction, contour shape metrics,
// keypoint detection and description, descriptor matching, robust
// homography fitting, hull geometry and colour histograms.
//
// Everything is implemented in pure Go so the engine builds without a
// native OpenCV installation. The Primitives interface lets callers (and
// tests) substitute their own implementation.
package vision
