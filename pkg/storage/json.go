package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"klinehub/pkg/provider/core"
)

// tickDocument 实时快照JSON文件结构
type tickDocument struct {
	UpdateTime string     `json:"update_time"`
	Data       *core.Tick `json:"data"`
}

// SaveTick 将实时快照写入 <代码>_real_time_price.json，返回文件名
func (s *CSVStore) SaveTick(tick *core.Tick) (string, error) {
	filename := TickFileName(tick.Symbol)

	doc := tickDocument{
		UpdateTime: time.Now().Format("2006-01-02 15:04:05"),
		Data:       tick,
	}

	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("序列化实时快照失败: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.WriteFile(filepath.Join(s.dir, filename), payload, 0644); err != nil {
		s.stats.WriteErrors++
		return "", fmt.Errorf("写入实时快照文件失败: %w", err)
	}

	s.stats.TotalRecords++
	s.stats.LastWrite = time.Now()

	s.log.Debugf("实时快照已保存: %s", filename)
	return filename, nil
}

// LoadTick 读取已持久化的实时快照，文件不存在时返回 nil
func (s *CSVStore) LoadTick(symbol string) (*core.Tick, error) {
	path := filepath.Join(s.dir, TickFileName(symbol))

	payload, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("读取实时快照文件失败: %w", err)
	}

	var doc tickDocument
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("解析实时快照文件失败: %w", err)
	}
	return doc.Data, nil
}

// candleDocument K线JSON导出文件结构
type candleDocument struct {
	Metadata struct {
		StockCode    string `json:"stock_code"`
		Period       string `json:"period"`
		DividendType string `json:"dividend_type"`
		DataCount    int    `json:"data_count"`
		ExportTime   string `json:"export_time"`
	} `json:"metadata"`
	TimeRange struct {
		StartTime string `json:"start_time,omitempty"`
		EndTime   string `json:"end_time,omitempty"`
	} `json:"time_range"`
	KlineData []core.Candle `json:"kline_data"`
}

// SaveCandlesJSON 将K线序列导出为JSON格式（文件名与CSV规则一致，扩展名为 .json）
func (s *CSVStore) SaveCandlesJSON(filename string, candles []core.Candle) error {
	var doc candleDocument
	doc.KlineData = candles
	doc.Metadata.DataCount = len(candles)
	doc.Metadata.ExportTime = time.Now().Format("2006-01-02 15:04:05")

	if len(candles) > 0 {
		doc.Metadata.StockCode = candles[0].Symbol
		doc.Metadata.Period = candles[0].Period
		doc.Metadata.DividendType = candles[0].DividendType
		doc.TimeRange.StartTime = candles[0].Timestamp.Format("2006-01-02 15:04:05")
		doc.TimeRange.EndTime = candles[len(candles)-1].Timestamp.Format("2006-01-02 15:04:05")
	}

	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化K线数据失败: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.WriteFile(filepath.Join(s.dir, filename), payload, 0644); err != nil {
		s.stats.WriteErrors++
		return fmt.Errorf("写入K线JSON文件失败: %w", err)
	}

	s.stats.TotalRecords += int64(len(candles))
	s.stats.LastWrite = time.Now()
	return nil
}
