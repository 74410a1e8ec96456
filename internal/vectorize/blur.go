package vectorize

// blurKernel is a 3x3 binomial approximation of a Gaussian.
var blurKernel = [3][3]int{
	{1, 2, 1},
	{2, 4, 2},
	{1, 2, 1},
}

const blurDivisor = 16

// Preprocess smooths the color channels of every interior pixel with
// blurKernel. Border pixels and the alpha channel are copied unchanged.
// src is never modified.
func Preprocess(src PixelBuffer) PixelBuffer {
	dst := src.Clone()
	w, h := src.Width, src.Height

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			var r, g, b int
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					i := src.Offset(x+kx, y+ky)
					weight := blurKernel[ky+1][kx+1]
					r += int(src.Pix[i]) * weight
					g += int(src.Pix[i+1]) * weight
					b += int(src.Pix[i+2]) * weight
				}
			}

			i := dst.Offset(x, y)
			dst.Pix[i] = uint8(r / blurDivisor)
			dst.Pix[i+1] = uint8(g / blurDivisor)
			dst.Pix[i+2] = uint8(b / blurDivisor)
		}
	}
	return dst
}
