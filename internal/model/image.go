package model

import "image"

// Image is a decoded bitmap together with its accounting cost in bytes.
// Cost is the size of a compressed encoding, not the in-memory footprint.
type Image struct {
	Img  image.Image
	Cost int64
}
