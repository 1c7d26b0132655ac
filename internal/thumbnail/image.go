package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"

	_ "image/jpeg"

	"github.com/google/uuid"
	"golang.org/x/image/draw"

	"github.com/kt-lectures/broadcaster/internal/models"
)

// PrepareBaseImage center-crops an uploaded JPEG or PNG to the 7:12 base
// image aspect and scales it to 630x1080. The result is PNG encoded.
func PrepareBaseImage(r io.Reader) ([]byte, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	cw, ch := w, w*BaseImageHeight/BaseImageWidth
	if ch > h {
		cw, ch = h*BaseImageWidth/BaseImageHeight, h
	}
	if cw == 0 || ch == 0 {
		return nil, fmt.Errorf("image %dx%d is too small", w, h)
	}
	x0 := b.Min.X + (w-cw)/2
	y0 := b.Min.Y + (h-ch)/2

	cropRect := image.Rect(0, 0, cw, ch)
	cropped := image.NewRGBA(cropRect)
	draw.Draw(cropped, cropRect, img, image.Point{X: x0, Y: y0}, draw.Src)

	dst := image.NewRGBA(image.Rect(0, 0, BaseImageWidth, BaseImageHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), cropped, cropped.Bounds(), draw.Over, nil)

	var out bytes.Buffer
	if err := png.Encode(&out, dst); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return out.Bytes(), nil
}

// ImageLookup resolves an image id to its stored record.
type ImageLookup interface {
	GetImage(ctx context.Context, id uuid.UUID) (*models.ThumbnailsImage, error)
}

// ObjectReader streams stored objects.
type ObjectReader interface {
	GetObjectStream(ctx context.Context, bucket, key string) (io.ReadCloser, string, error)
}

// BlobImages loads base images from the blob store.
type BlobImages struct {
	lookup  ImageLookup
	objects ObjectReader
	bucket  string
}

func NewBlobImages(lookup ImageLookup, objects ObjectReader, bucket string) *BlobImages {
	return &BlobImages{lookup: lookup, objects: objects, bucket: bucket}
}

func (s *BlobImages) Load(ctx context.Context, id uuid.UUID) (image.Image, error) {
	rec, err := s.lookup.GetImage(ctx, id)
	if err != nil {
		return nil, err
	}
	body, _, err := s.objects.GetObjectStream(ctx, s.bucket, rec.ObjectKey)
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", rec.ObjectKey, err)
	}
	defer body.Close()
	img, _, err := image.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", rec.ObjectKey, err)
	}
	return img, nil
}
