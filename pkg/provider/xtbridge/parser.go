package xtbridge

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"klinehub/pkg/provider/core"
)

// decodeGBK 将GBK编码的响应体转换为UTF-8
func decodeGBK(body []byte) (string, error) {
	reader := transform.NewReader(bytes.NewReader(body), simplifiedchinese.GBK.NewDecoder())
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// parseTradingDates 解析交易日列表响应
// 格式：逗号分隔的紧凑日期，如 "20250825,20250826,20250827"
func parseTradingDates(body string) []string {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil
	}

	parts := strings.Split(body, ",")
	dates := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if len(p) == 8 {
			dates = append(dates, p)
		}
	}
	return dates
}

// parseCandles 解析K线响应
// 每行一根K线：time,open,high,low,close,volume,amount
// time 为紧凑格式 YYYYMMDDHHMMSS（日线及以上为 YYYYMMDD）
func parseCandles(body, symbol, period, dividendType string) ([]core.Candle, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, nil
	}

	lines := strings.Split(body, "\n")
	candles := make([]core.Candle, 0, len(lines))

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "time,") {
			continue
		}

		fields := strings.Split(line, ",")
		if len(fields) < 7 {
			continue
		}

		ts, err := parseCompactTime(fields[0])
		if err != nil {
			continue
		}

		open, _ := strconv.ParseFloat(fields[1], 64)
		high, _ := strconv.ParseFloat(fields[2], 64)
		low, _ := strconv.ParseFloat(fields[3], 64)
		closePrice, _ := strconv.ParseFloat(fields[4], 64)
		volume, _ := strconv.ParseInt(fields[5], 10, 64)
		turnover, _ := strconv.ParseFloat(fields[6], 64)

		candles = append(candles, core.Candle{
			Symbol:       symbol,
			Timestamp:    ts,
			Open:         open,
			High:         high,
			Low:          low,
			Close:        closePrice,
			Volume:       volume,
			Turnover:     turnover,
			Period:       period,
			DividendType: dividendType,
		})
	}

	return candles, nil
}

// parseTick 解析实时快照响应
// 格式：name~price~open~high~low~prev_close~volume~amount~time
func parseTick(body, symbol string) (*core.Tick, error) {
	body = strings.TrimSpace(body)
	if body == "" || body == "none" {
		return nil, core.ErrTickNotAvailable
	}

	fields := strings.Split(body, "~")
	if len(fields) < 9 {
		return nil, fmt.Errorf("tick响应字段不足: %d", len(fields))
	}

	price, _ := strconv.ParseFloat(fields[1], 64)
	open, _ := strconv.ParseFloat(fields[2], 64)
	high, _ := strconv.ParseFloat(fields[3], 64)
	low, _ := strconv.ParseFloat(fields[4], 64)
	prevClose, _ := strconv.ParseFloat(fields[5], 64)
	volume, _ := strconv.ParseInt(fields[6], 10, 64)
	turnover, _ := strconv.ParseFloat(fields[7], 64)

	ts, err := parseCompactTime(fields[8])
	if err != nil {
		ts = time.Now()
	}

	tick := &core.Tick{
		Symbol:    symbol,
		Name:      fields[0],
		Price:     price,
		Open:      open,
		High:      high,
		Low:       low,
		PrevClose: prevClose,
		Volume:    volume,
		Turnover:  turnover,
		Timestamp: ts,
	}

	if prevClose > 0 {
		tick.Change = price - prevClose
		tick.ChangePercent = tick.Change / prevClose * 100
	}

	return tick, nil
}

// parseCompactTime 解析紧凑时间格式：YYYYMMDDHHMMSS 或 YYYYMMDD
func parseCompactTime(s string) (time.Time, error) {
	switch len(s) {
	case 14:
		return time.ParseInLocation("20060102150405", s, time.Local)
	case 8:
		return time.ParseInLocation("20060102", s, time.Local)
	}
	return time.Time{}, fmt.Errorf("unrecognized time format: %q", s)
}
