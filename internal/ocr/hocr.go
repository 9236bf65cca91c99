package ocr

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// 行级容器：tesseract 会按版面把行标记为以下几类之一。
const hocrLineSelector = ".ocr_line, .ocr_caption, .ocr_header, .ocr_textfloat"

// ParseHOCR 把 tesseract 的 hOCR 输出还原为纯文本。
//
// 规则：
// - 每个行级容器输出一行，词之间用单个空格连接
// - 置信度（title 中的 x_wconf）低于 minConf 的词被丢弃；缺失 x_wconf 的词保留
// - 行内所有词都被丢弃时，该行不输出
func ParseHOCR(r io.Reader, minConf int) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("解析 hocr 失败：%w", err)
	}

	lines := make([]string, 0, 32)
	doc.Find(hocrLineSelector).Each(func(_ int, line *goquery.Selection) {
		words := make([]string, 0, 8)
		line.Find(".ocrx_word").Each(func(_ int, w *goquery.Selection) {
			text := strings.TrimSpace(w.Text())
			if text == "" {
				return
			}
			if conf, ok := wordConf(w.AttrOr("title", "")); ok && conf < minConf {
				return
			}
			words = append(words, text)
		})
		if len(words) > 0 {
			lines = append(lines, strings.Join(words, " "))
		}
	})
	return strings.Join(lines, "\n"), nil
}

// wordConf 从 title="bbox 10 20 30 40; x_wconf 91" 中取出 x_wconf。
func wordConf(title string) (int, bool) {
	for _, part := range strings.Split(title, ";") {
		f := strings.Fields(part)
		if len(f) == 2 && f[0] == "x_wconf" {
			n, err := strconv.Atoi(f[1])
			if err != nil {
				return 0, false
			}
			return n, true
		}
	}
	return 0, false
}
