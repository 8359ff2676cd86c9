// Package qrcode は本のIDを読み取り用のQRコード画像に変換する．
// 内容はIDそのもので，署名などは付けない．
package qrcode

import (
	"encoding/base64"
	"errors"
	"fmt"

	goqrcode "github.com/skip2/go-qrcode"
)

const dataURLPrefix = "data:image/png;base64,"

var ErrEmptyContent = errors.New("qrcode: empty content")

type Generator interface {
	// PNG は content をエンコードした PNG 画像
	PNG(content string) ([]byte, error)
	// DataURL は <img src> にそのまま入れられる形式
	DataURL(content string) (string, error)
}

type PNGGenerator struct {
	size  int
	level goqrcode.RecoveryLevel
}

func New(size int) *PNGGenerator {
	if size <= 0 {
		size = 256
	}
	return &PNGGenerator{size: size, level: goqrcode.Medium}
}

func (g *PNGGenerator) PNG(content string) ([]byte, error) {
	if content == "" {
		return nil, ErrEmptyContent
	}
	png, err := goqrcode.Encode(content, g.level, g.size)
	if err != nil {
		return nil, fmt.Errorf("qrcode: encode %q: %w", content, err)
	}
	return png, nil
}

func (g *PNGGenerator) DataURL(content string) (string, error) {
	png, err := g.PNG(content)
	if err != nil {
		return "", err
	}
	return dataURLPrefix + base64.StdEncoding.EncodeToString(png), nil
}
