package instant

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidSymbolFormat 无效的股票代码格式错误
// 裸6位数字无法判断交易所，同样拒绝而非猜测
var ErrInvalidSymbolFormat = errors.New("invalid symbol format, expect 600689.SH / 000001.SZ")

var (
	canonicalRe  = regexp.MustCompile(`^\d{6}\.(SH|SZ)$`)
	codeFirstRe  = regexp.MustCompile(`^(\d{6})[._-]?(SH|SZ)$`)
	exchFirstRe  = regexp.MustCompile(`^(SH|SZ)[._-]?(\d{6})$`)
	bareDigitsRe = regexp.MustCompile(`^\d{6}$`)
)

// NormalizeSymbol 规范化股票代码
// 支持 600689.SH / 600689SH / SH600689 / 600689_sh / 600689-sh，
// 统一返回 NNNNNN.EX 格式
func NormalizeSymbol(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "", ErrInvalidSymbolFormat
	}

	if canonicalRe.MatchString(code) {
		return code, nil
	}

	if m := codeFirstRe.FindStringSubmatch(code); m != nil {
		return m[1] + "." + m[2], nil
	}

	if m := exchFirstRe.FindStringSubmatch(code); m != nil {
		return m[2] + "." + m[1], nil
	}

	if bareDigitsRe.MatchString(code) {
		// 交易所后缀缺失，无法确定归属
		return "", ErrInvalidSymbolFormat
	}

	return "", ErrInvalidSymbolFormat
}
