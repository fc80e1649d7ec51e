package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"klinehub/pkg/calendar"
	"klinehub/pkg/logger"
	"klinehub/pkg/provider/core"
)

// candleHeader K线CSV文件的列定义
var candleHeader = []string{
	"datetime", "open", "high", "low", "close", "volume", "turnover",
	"change", "change_pct", "amplitude", "stock_code", "period", "dividend_type",
}

// CSVStore 将K线序列与实时快照持久化为数据目录下的平面文件。
// 文件命名与既有规则保持一致，同名文件整体覆盖写入。
type CSVStore struct {
	dir   string
	mu    sync.Mutex
	stats StoreStats
	log   *logrus.Entry
}

// StoreStats 存储运行统计信息
type StoreStats struct {
	TotalRecords int64     `json:"total_records"` // 已写入的总记录数
	WriteErrors  int64     `json:"write_errors"`  // 写入失败的次数
	LastWrite    time.Time `json:"last_write"`    // 最后一次写入时间
}

// NewCSVStore 创建CSV存储，目录不存在时自动创建
func NewCSVStore(dir string) (*CSVStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("创建存储目录失败: %w", err)
	}
	return &CSVStore{
		dir: dir,
		log: logger.WithComponent("CSVStore"),
	}, nil
}

// Dir 返回数据目录
func (s *CSVStore) Dir() string {
	return s.dir
}

// filenamePeriod 文件名中的周期标识
// 月线映射为 1month，避免大小写不敏感文件系统上与 1m（1分钟线）冲突
func filenamePeriod(period string) string {
	if period == "1M" {
		return "1month"
	}
	return period
}

// CandleFileName 推导K线文件名：
// <代码>_<周期>_<复权>[_<日期标识>][_lastN]_kline.csv
// 符号日期（today/yesterday）使用固定标识，便于定期更新覆盖同一文件。
func CandleFileName(symbol, period, dividendType string, startTok, endTok calendar.Token, countLimit int) string {
	parts := []string{strings.ReplaceAll(symbol, ".", "_"), filenamePeriod(period), dividendType}

	switch {
	case startTok.IsSymbolic() || endTok.IsSymbolic():
		if !startTok.IsZero() && !endTok.IsZero() {
			if startTok.Raw == endTok.Raw {
				parts = append(parts, startTok.Raw)
			} else {
				parts = append(parts, startTok.Raw+"_"+endTok.Raw)
			}
		} else if !startTok.IsZero() {
			parts = append(parts, startTok.Raw)
		} else {
			parts = append(parts, endTok.Raw)
		}
	case startTok.Kind == calendar.TokenExplicit && endTok.Kind == calendar.TokenExplicit:
		start := startTok.Date.Format("20060102")
		end := endTok.Date.Format("20060102")
		if start == end {
			parts = append(parts, start)
		} else {
			parts = append(parts, start, end)
		}
	}

	if countLimit > 0 {
		parts = append(parts, fmt.Sprintf("last%d", countLimit))
	}

	return strings.Join(parts, "_") + "_kline.csv"
}

// TickFileName 实时快照文件名：<代码>_real_time_price.json
func TickFileName(symbol string) string {
	return strings.ReplaceAll(symbol, ".", "_") + "_real_time_price.json"
}

// SaveCandles 将K线序列写入指定文件（全量覆盖）
func (s *CSVStore) SaveCandles(filename string, candles []core.Candle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, filename)
	f, err := os.Create(path)
	if err != nil {
		s.stats.WriteErrors++
		return fmt.Errorf("创建K线文件失败: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(candleHeader); err != nil {
		s.stats.WriteErrors++
		return fmt.Errorf("写入表头失败: %w", err)
	}

	for _, c := range candles {
		row := []string{
			c.Timestamp.Format("2006-01-02 15:04:05"),
			formatFloat(c.Open),
			formatFloat(c.High),
			formatFloat(c.Low),
			formatFloat(c.Close),
			strconv.FormatInt(c.Volume, 10),
			formatFloat(c.Turnover),
			formatFloat(c.Change()),
			formatFloat(c.ChangePercent()),
			formatFloat(c.Amplitude()),
			c.Symbol,
			c.Period,
			c.DividendType,
		}
		if err := w.Write(row); err != nil {
			s.stats.WriteErrors++
			return fmt.Errorf("写入K线记录失败: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		s.stats.WriteErrors++
		return fmt.Errorf("刷新K线文件失败: %w", err)
	}

	s.stats.TotalRecords += int64(len(candles))
	s.stats.LastWrite = time.Now()

	s.log.Debugf("K线数据已保存: %s (%d 条)", filename, len(candles))
	return nil
}

// TailCandles 重新读取已持久化文件的最后 limit 条K线记录。
// 文件不存在时返回空切片。
func (s *CSVStore) TailCandles(filename string, limit int) ([]core.Candle, error) {
	path := filepath.Join(s.dir, filename)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("打开K线文件失败: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("读取K线文件失败: %w", err)
	}
	if len(rows) <= 1 {
		return nil, nil
	}

	data := rows[1:] // 跳过表头
	if limit > 0 && len(data) > limit {
		data = data[len(data)-limit:]
	}

	candles := make([]core.Candle, 0, len(data))
	for _, row := range data {
		c, err := parseCandleRow(row)
		if err != nil {
			s.log.Warnf("跳过无法解析的K线记录: %v", err)
			continue
		}
		candles = append(candles, c)
	}
	return candles, nil
}

func parseCandleRow(row []string) (core.Candle, error) {
	if len(row) < len(candleHeader) {
		return core.Candle{}, fmt.Errorf("列数不足: %d", len(row))
	}

	ts, err := time.ParseInLocation("2006-01-02 15:04:05", row[0], time.Local)
	if err != nil {
		return core.Candle{}, fmt.Errorf("时间解析失败: %w", err)
	}

	open, _ := strconv.ParseFloat(row[1], 64)
	high, _ := strconv.ParseFloat(row[2], 64)
	low, _ := strconv.ParseFloat(row[3], 64)
	closePrice, _ := strconv.ParseFloat(row[4], 64)
	volume, _ := strconv.ParseInt(row[5], 10, 64)
	turnover, _ := strconv.ParseFloat(row[6], 64)

	return core.Candle{
		Timestamp:    ts,
		Open:         open,
		High:         high,
		Low:          low,
		Close:        closePrice,
		Volume:       volume,
		Turnover:     turnover,
		Symbol:       row[10],
		Period:       row[11],
		DividendType: row[12],
	}, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ListFiles 列出数据目录下的全部数据文件名（csv/json）
func (s *CSVStore) ListFiles() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("读取数据目录失败: %w", err)
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".csv") || strings.HasSuffix(name, ".json") {
			files = append(files, name)
		}
	}
	return files, nil
}

// FilePath 返回数据文件的绝对路径；路径穿越时返回错误
func (s *CSVStore) FilePath(filename string) (string, error) {
	if filename != filepath.Base(filename) {
		return "", fmt.Errorf("非法的文件名: %s", filename)
	}
	return filepath.Join(s.dir, filename), nil
}

// Stats 返回存储统计信息
func (s *CSVStore) Stats() StoreStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
