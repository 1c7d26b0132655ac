package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/kt-lectures/broadcaster/internal/models"
)

type fixedImages struct {
	img image.Image
	err error
}

func (f fixedImages) Load(context.Context, uuid.UUID) (image.Image, error) { return f.img, f.err }

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func decode(t *testing.T, b []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return img
}

func sameRGB(a, b color.Color) bool {
	ar, ag, ab, _ := a.RGBA()
	br, bg, bb, _ := b.RGBA()
	return ar>>8 == br>>8 && ag>>8 == bg>>8 && ab>>8 == bb>>8
}

func template() *models.ThumbnailsTemplate {
	return &models.ThumbnailsTemplate{
		ID:           uuid.New(),
		FirstTitle:   "Algorithms",
		SecondTitle:  "and Data",
		LecturerName: "Ivanov",
		TermNumber:   "s3",
		Color:        "capri",
	}
}

func TestRenderLayout(t *testing.T) {
	red := color.NRGBA{R: 0xff, A: 0xff}
	id := uuid.New()
	r, err := NewRenderer(nil, fixedImages{img: solid(BaseImageWidth, BaseImageHeight, red)}, nil)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	tpl := template()
	tpl.ImageID = &id

	out, err := r.Render(context.Background(), tpl, "L5")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	img := decode(t, out)
	if b := img.Bounds(); b.Dx() != Width || b.Dy() != Height {
		t.Fatalf("expected %dx%d, got %v", Width, Height, b)
	}
	if c := img.At(Width-10, 10); !sameRGB(c, red) {
		t.Fatalf("expected base image on the right, got %v", c)
	}
	// Inside the badge, away from its text.
	if c := img.At(350, 145); !sameRGB(c, color.NRGBA{G: 0xcc, B: 0xff, A: 0xff}) {
		t.Fatalf("expected accent badge, got %v", c)
	}
	if c := img.At(5, 5); !sameRGB(c, color.Black) {
		t.Fatalf("expected black background, got %v", c)
	}
}

func TestRenderWithoutImageSource(t *testing.T) {
	r, err := NewRenderer(DefaultPalette(), nil, nil)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	id := uuid.New()
	tpl := template()
	tpl.ImageID = &id
	out, err := r.Render(context.Background(), tpl, "P1")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if c := decode(t, out).At(Width-10, 10); !sameRGB(c, color.Black) {
		t.Fatalf("expected no base image, got %v", c)
	}
}

func TestRenderErrors(t *testing.T) {
	boom := errors.New("boom")
	r, _ := NewRenderer(nil, fixedImages{err: boom}, nil)

	id := uuid.New()
	tpl := template()
	tpl.ImageID = &id
	if _, err := r.Render(context.Background(), tpl, "L1"); !errors.Is(err, boom) {
		t.Fatalf("expected image error, got %v", err)
	}

	tpl = template()
	tpl.Color = "not-a-color"
	if _, err := r.Render(context.Background(), tpl, "L1"); err == nil {
		t.Fatal("expected invalid color error")
	}
}

func TestPaletteColor(t *testing.T) {
	p := DefaultPalette()
	tests := []struct {
		in   string
		want color.Color
		ok   bool
	}{
		{"tart", color.NRGBA{R: 0xf9, G: 0x39, B: 0x3f, A: 0xff}, true},
		{" Violet ", color.NRGBA{R: 0x7f, B: 0xff, A: 0xff}, true},
		{"#102030", color.NRGBA{R: 0x10, G: 0x20, B: 0x30, A: 0xff}, true},
		{"abcdeg", nil, false},
		{"", nil, false},
	}
	for _, tt := range tests {
		got, err := p.Color(tt.in)
		if (err == nil) != tt.ok {
			t.Fatalf("%q: unexpected error state %v", tt.in, err)
		}
		if tt.ok && !sameRGB(got, tt.want) {
			t.Fatalf("%q: expected %v, got %v", tt.in, tt.want, got)
		}
	}
}

func TestLoadPalette(t *testing.T) {
	path := filepath.Join(t.TempDir(), "palette.yaml")
	if err := os.WriteFile(path, []byte("capri: \"010203\"\nMint: 3eb489\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	p, err := LoadPalette(path)
	if err != nil {
		t.Fatalf("LoadPalette: %v", err)
	}
	if p["capri"] != "010203" || p["mint"] != "3eb489" || p["tart"] != "f9393f" {
		t.Fatalf("unexpected palette %v", p)
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("capri: nope\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadPalette(bad); err == nil {
		t.Fatal("expected invalid override error")
	}
}

func TestPrepareBaseImage(t *testing.T) {
	var src bytes.Buffer
	if err := png.Encode(&src, solid(1600, 1200, color.White)); err != nil {
		t.Fatal(err)
	}
	out, err := PrepareBaseImage(&src)
	if err != nil {
		t.Fatalf("PrepareBaseImage: %v", err)
	}
	img := decode(t, out)
	if b := img.Bounds(); b.Dx() != BaseImageWidth || b.Dy() != BaseImageHeight {
		t.Fatalf("expected %dx%d, got %v", BaseImageWidth, BaseImageHeight, b)
	}

	if _, err := PrepareBaseImage(bytes.NewReader([]byte("not an image"))); err == nil {
		t.Fatal("expected decode error")
	}
}

type memObjects map[string][]byte

func (m memObjects) GetObjectStream(_ context.Context, _, key string) (io.ReadCloser, string, error) {
	b, ok := m[key]
	if !ok {
		return nil, "", models.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), "image/png", nil
}

type imageLookup map[uuid.UUID]*models.ThumbnailsImage

func (l imageLookup) GetImage(_ context.Context, id uuid.UUID) (*models.ThumbnailsImage, error) {
	if rec, ok := l[id]; ok {
		return rec, nil
	}
	return nil, models.ErrNotFound
}

func TestBlobImagesLoad(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, solid(4, 4, color.White)); err != nil {
		t.Fatal(err)
	}
	id := uuid.New()
	src := NewBlobImages(
		imageLookup{id: {ID: id, ObjectKey: "thumbnails/images/a.png"}},
		memObjects{"thumbnails/images/a.png": buf.Bytes()},
		"bucket",
	)
	img, err := src.Load(context.Background(), id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if img.Bounds().Dx() != 4 {
		t.Fatalf("unexpected bounds %v", img.Bounds())
	}
	if _, err := src.Load(context.Background(), uuid.New()); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
