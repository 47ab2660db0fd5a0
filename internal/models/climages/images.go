package climages

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/image/draw"
)

const (
	MaxWidth    = 1200
	MaxFileSize = 10 * 1024 * 1024
	// limite en pixels, vérifiée avant décodage
	MaxPixels   = 40_000_000
	jpegQuality = 85
)

var (
	ErrNotImage    = errors.New("Le fichier doit être une image")
	ErrUnsupported = errors.New("seules les images jpg et png sont supportées")
	ErrTooLarge    = errors.New("Image trop grande (max 10MB)")
	ErrTooManyPx   = errors.New("Image trop grande (max 40 mégapixels)")
)

// Upload décrit le fichier enregistré sous staticpath/uploads
type Upload struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Format   string `json:"format"`
}

// Resize conserve le ratio, une image plus étroite que maxWidth est renvoyée telle quelle
func Resize(img image.Image, maxWidth int) image.Image {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if width <= maxWidth {
		return img
	}

	ratio := float64(maxWidth) / float64(width)
	newHeight := max(int(float64(height)*ratio), 1)

	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, newHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	return dst
}

// Save vérifie le type, redimensionne et écrit l'image dans dir avec un nom aléatoire
func Save(file io.ReadSeeker, size int64, dir string) (*Upload, error) {
	if size > MaxFileSize {
		return nil, ErrTooLarge
	}

	buffer := make([]byte, 512)
	n, err := file.Read(buffer)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("lecture fichier: %w", err)
	}
	if !strings.HasPrefix(http.DetectContentType(buffer[:n]), "image/") {
		return nil, ErrNotImage
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	// un petit fichier peut annoncer des dimensions énormes
	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		return nil, ErrUnsupported
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, ErrTooManyPx
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	img, format, err := image.Decode(file)
	if err != nil {
		return nil, ErrUnsupported
	}

	var ext string
	switch format {
	case "jpeg":
		ext = ".jpg"
	case "png":
		ext = ".png"
	default:
		return nil, ErrUnsupported
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("création dossier: %w", err)
	}

	filename := uuid.NewString() + ext
	path := filepath.Join(dir, filename)

	out, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("création fichier: %w", err)
	}
	defer out.Close()

	processed := Resize(img, MaxWidth)
	if format == "png" {
		// transparence conservée
		err = png.Encode(out, processed)
	} else {
		err = jpeg.Encode(out, processed, &jpeg.Options{Quality: jpegQuality})
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("sauvegarde image: %w", err)
	}

	info, err := out.Stat()
	if err != nil {
		return nil, err
	}

	return &Upload{
		URL:      "/static/uploads/" + filename,
		Filename: filename,
		Size:     info.Size(),
		Format:   format,
	}, nil
}
