// Package ranking computes the rotation order of tracked songs.
//
// Each rating carries play counts over five lookback windows, one per star level; a five star song
// looks back 14 days and a one star song 180. A song's priority is its play count in the window of
// its own rating. Playing a song pushes it down the list; a well-liked song climbs back after two
// weeks while a one star song stays down for six months. Unreviewed songs use the five star window.
package ranking
