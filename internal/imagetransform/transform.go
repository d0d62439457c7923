// Package imagetransform redimensiona e recodifica fotos de demandas.
package imagetransform

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/disintegration/imaging"
)

// Fit define como a imagem ocupa o quadro de destino.
type Fit string

const (
	// FitCover preenche o quadro e corta o excesso a partir do centro.
	FitCover Fit = "cover"
	// FitContain cabe inteira no quadro, preservando a proporção.
	FitContain Fit = "contain"
)

// Format é o formato de saída.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
)

// Options descreve a transformação pedida.
type Options struct {
	Width   int
	Height  int
	Fit     Fit
	Format  Format
	Quality int
}

// DefaultQuality é a qualidade JPEG usada quando Options.Quality é zero.
const DefaultQuality = 80

// Transformer é o contrato consumido pelo pipeline de anexos.
type Transformer interface {
	Transform(data []byte, opts Options) ([]byte, error)
}

// Imaging implementa Transformer com github.com/disintegration/imaging.
type Imaging struct{}

func (Imaging) Transform(data []byte, opts Options) ([]byte, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, errors.New("imagetransform: dimensões inválidas")
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("imagetransform: decodificar: %w", err)
	}

	switch opts.Fit {
	case FitContain:
		img = imaging.Fit(img, opts.Width, opts.Height, imaging.Lanczos)
	case FitCover, "":
		img = imaging.Fill(img, opts.Width, opts.Height, imaging.Center, imaging.Lanczos)
	default:
		return nil, fmt.Errorf("imagetransform: modo %q desconhecido", opts.Fit)
	}

	var buf bytes.Buffer
	switch opts.Format {
	case FormatPNG:
		err = imaging.Encode(&buf, img, imaging.PNG)
	case FormatJPEG, "":
		quality := opts.Quality
		if quality <= 0 {
			quality = DefaultQuality
		}
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality))
	default:
		return nil, fmt.Errorf("imagetransform: formato %q desconhecido", opts.Format)
	}
	if err != nil {
		return nil, fmt.Errorf("imagetransform: codificar: %w", err)
	}
	return buf.Bytes(), nil
}
