package qrcode

import (
	"errors"
	"strings"

	skipqrcode "github.com/skip2/go-qrcode"
)

var (
	ErrEmptyContent   = errors.New("qrcode: content cannot be empty")
	ErrInvalidSize    = errors.New("qrcode: size out of range")
	ErrFailedToEncode = errors.New("qrcode: failed to encode")
)

const (
	DefaultSize = 256
	MinSize     = 64
	MaxSize     = 1024
)

// PNG renders content as a square PNG of size pixels. A zero size uses
// DefaultSize. High error correction is used since printed member cards get
// scuffed.
func PNG(content string, size int) ([]byte, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	if size == 0 {
		size = DefaultSize
	}
	if size < MinSize || size > MaxSize {
		return nil, ErrInvalidSize
	}

	img, err := skipqrcode.Encode(content, skipqrcode.High, size)
	if err != nil {
		return nil, errors.Join(ErrFailedToEncode, err)
	}
	return img, nil
}
