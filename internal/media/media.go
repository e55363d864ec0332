package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"

	"github.com/kasnerz/letax/internal/utils"
)

// Upload is a decoded multipart file handed to the services, so the
// processing pipeline stays independent of the HTTP layer.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

func (u Upload) IsImage() bool { return strings.HasPrefix(u.ContentType, "image/") }
func (u Upload) IsVideo() bool { return strings.HasPrefix(u.ContentType, "video/") }

// Thumbnail sizes generated for every stored image. The square crops feed
// avatars and feed previews, the 1000-wide variant feeds detail views.
var thumbnailSpecs = []struct {
	Suffix   string
	MaxWidth int
	Square   bool
}{
	{"100_square", 100, true},
	{"150_square", 150, true},
	{"1000", 1000, false},
}

// Processor converts uploads into the standard stored formats: JPEG for
// images, bounded-size H.264/AAC MP4 for videos.
type Processor struct {
	FFmpegPath string
}

func NewProcessor(ffmpegPath string) *Processor {
	return &Processor{FFmpegPath: ffmpegPath}
}

// ProcessPhoto decodes an uploaded image (JPEG, PNG or GIF) and re-encodes it
// as JPEG under a fresh unique name.
func (p *Processor) ProcessPhoto(upload Upload) (content []byte, name string, err error) {
	img, _, err := image.Decode(bytes.NewReader(upload.Data))
	if err != nil {
		return nil, "", fmt.Errorf("cannot read image %s: %w", upload.Filename, err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, "", fmt.Errorf("cannot encode image %s: %w", upload.Filename, err)
	}

	return buf.Bytes(), utils.GenerateID() + ".jpg", nil
}

// Thumbnails renders the thumbnail pyramid for a stored JPEG. Keys are the
// filename suffixes (e.g. "100_square").
func (p *Processor) Thumbnails(content []byte) (map[string][]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("cannot decode image for thumbnails: %w", err)
	}

	out := make(map[string][]byte, len(thumbnailSpecs))
	for _, spec := range thumbnailSpecs {
		thumb := img
		if spec.Square {
			thumb = cropSquare(thumb)
		}
		thumb = resize(thumb, spec.MaxWidth)

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: 85}); err != nil {
			return nil, err
		}
		out[spec.Suffix] = buf.Bytes()
	}
	return out, nil
}

// ThumbnailSuffixes lists the generated thumbnail variants, so callers can
// enumerate derived files without knowing the pyramid.
func ThumbnailSuffixes() []string {
	suffixes := make([]string, 0, len(thumbnailSpecs))
	for _, spec := range thumbnailSpecs {
		suffixes = append(suffixes, spec.Suffix)
	}
	return suffixes
}

// ThumbnailPath derives the stored thumbnail location from the original path.
func ThumbnailPath(path, suffix string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_" + suffix + ".jpg"
}

// ProcessVideo re-encodes an uploaded video to a size-bounded MP4 via ffmpeg.
// The work is synchronous; the caller surfaces errors to the request.
func (p *Processor) ProcessVideo(ctx context.Context, upload Upload) (content []byte, name string, err error) {
	tmpDir, err := os.MkdirTemp("", "letax-video-*")
	if err != nil {
		return nil, "", err
	}
	defer os.RemoveAll(tmpDir)

	inPath := filepath.Join(tmpDir, "in"+filepath.Ext(upload.Filename))
	outPath := filepath.Join(tmpDir, "out.mp4")

	if err := os.WriteFile(inPath, upload.Data, 0600); err != nil {
		return nil, "", err
	}

	cmd := exec.CommandContext(ctx, p.FFmpegPath,
		"-y",
		"-i", inPath,
		"-vf", "scale='min(1280,iw)':-2",
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "28",
		"-c:a", "aac",
		"-movflags", "+faststart",
		outPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, "", fmt.Errorf("ffmpeg failed for %s: %w: %s", upload.Filename, err, stderr.String())
	}

	content, err = os.ReadFile(outPath)
	if err != nil {
		return nil, "", err
	}
	return content, utils.GenerateID() + ".mp4", nil
}

func cropSquare(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == h {
		return img
	}

	side := w
	if h < side {
		side = h
	}
	x0 := b.Min.X + (w-side)/2
	y0 := b.Min.Y + (h-side)/2

	dst := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.Copy(dst, image.Point{}, img, image.Rect(x0, y0, x0+side, y0+side), draw.Src, nil)
	return dst
}

func resize(img image.Image, maxWidth int) image.Image {
	b := img.Bounds()
	if b.Dx() <= maxWidth {
		return img
	}

	height := b.Dy() * maxWidth / b.Dx()
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
