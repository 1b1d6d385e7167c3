package registry

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"

	qrcode "github.com/yeqown/go-qrcode/v2"
	"github.com/yeqown/go-qrcode/writer/standard"
)

var hexColorRe = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

type QROptions struct {
	Circle bool
	FG     string // #rrggbb, ignored when malformed
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// QRCode renders the link's tracking URL as a transparent PNG.
func (r *Registry) QRCode(ctx context.Context, id, userID int64, opts QROptions) ([]byte, string, error) {
	link, err := r.Get(ctx, id, userID)
	if err != nil {
		return nil, "", err
	}
	png, err := RenderQR(link.TrackingURL, opts)
	if err != nil {
		return nil, "", err
	}
	return png, fmt.Sprintf("link-%d-qr.png", link.ID), nil
}

func RenderQR(content string, opts QROptions) ([]byte, error) {
	imgOpts := []standard.ImageOption{
		standard.WithBuiltinImageEncoder(standard.PNG_FORMAT),
		standard.WithQRWidth(10),
		standard.WithBorderWidth(20),
		standard.WithBgTransparent(),
	}
	if opts.Circle {
		imgOpts = append(imgOpts, standard.WithCircleShape())
	}
	if hexColorRe.MatchString(opts.FG) {
		imgOpts = append(imgOpts, standard.WithFgColorRGBHex(opts.FG))
	}

	qrc, err := qrcode.New(content)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	var buf bytes.Buffer
	if err := qrc.Save(standard.NewWithWriter(nopCloser{&buf}, imgOpts...)); err != nil {
		return nil, fmt.Errorf("render qr: %w", err)
	}
	return buf.Bytes(), nil
}
