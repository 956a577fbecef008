// ImageFilter describes user-provided filters to narrow the image list.
package dto

type ImageFilter struct {
	Method string // only images with at least one detection whose method contains this text
	Limit  int
	Offset int
}
