// Package retrieval ranks a corpus against a query image.
//
// A query is routed to one of two cascades. The object route filters by
// colour histogram correlation, matches ORB descriptors with a ratio test,
// verifies them with a RANSAC homography and fuses inlier count, hull
// coverage, colour and displacement consistency. The logo route works on
// the logo partition only: it compares the most prominent contours by
// complexity and Hu-moment shape similarity before matching SIFT
// descriptors. Survivors of either cascade are ranked by fused score.
package retrieval
