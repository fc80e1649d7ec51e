package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"klinehub/pkg/calendar"
	"klinehub/pkg/provider/core"
)

func testCandles(t *testing.T, n int) []core.Candle {
	base, err := time.ParseInLocation("2006-01-02 15:04:05", "2025-08-28 09:30:00", time.Local)
	require.NoError(t, err)

	candles := make([]core.Candle, 0, n)
	for i := 0; i < n; i++ {
		candles = append(candles, core.Candle{
			Symbol:       "600689.SH",
			Timestamp:    base.Add(time.Duration(i) * time.Minute),
			Open:         10.0 + float64(i)*0.01,
			High:         10.2,
			Low:          9.9,
			Close:        10.1,
			Volume:       int64(1000 + i),
			Turnover:     10100.5,
			Period:       "1m",
			DividendType: "front",
		})
	}
	return candles
}

func TestCandleFileName(t *testing.T) {
	today := calendar.Token{Kind: calendar.TokenToday, Raw: "today"}
	yesterday := calendar.Token{Kind: calendar.TokenYesterday, Raw: "yesterday"}
	jan1, err := calendar.ParseToken("2024-01-01")
	require.NoError(t, err)
	jan31, err := calendar.ParseToken("2024-01-31")
	require.NoError(t, err)

	tests := []struct {
		name       string
		period     string
		startTok   calendar.Token
		endTok     calendar.Token
		countLimit int
		expected   string
	}{
		{"全量", "1d", calendar.Token{}, calendar.Token{}, 0,
			"600689_SH_1d_front_kline.csv"},
		{"月线映射", "1M", calendar.Token{}, calendar.Token{}, 0,
			"600689_SH_1month_front_kline.csv"},
		{"today固定文件名", "1m", today, calendar.Token{}, 0,
			"600689_SH_1m_front_today_kline.csv"},
		{"同符号首尾", "1m", yesterday, yesterday, 0,
			"600689_SH_1m_front_yesterday_kline.csv"},
		{"不同符号首尾", "1m", yesterday, today, 0,
			"600689_SH_1m_front_yesterday_today_kline.csv"},
		{"明确范围", "1d", jan1, jan31, 0,
			"600689_SH_1d_front_20240101_20240131_kline.csv"},
		{"单日范围", "1d", jan1, jan1, 0,
			"600689_SH_1d_front_20240101_kline.csv"},
		{"数量限制", "1d", calendar.Token{}, calendar.Token{}, 20,
			"600689_SH_1d_front_last20_kline.csv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CandleFileName("600689.SH", tt.period, "front", tt.startTok, tt.endTok, tt.countLimit)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestCSVStore_SaveAndTail(t *testing.T) {
	store, err := NewCSVStore(t.TempDir())
	require.NoError(t, err)

	candles := testCandles(t, 10)
	filename := CandleFileName("600689.SH", "1m", "front", calendar.Token{}, calendar.Token{}, 0)

	require.NoError(t, store.SaveCandles(filename, candles))

	tail, err := store.TailCandles(filename, 3)
	require.NoError(t, err)
	require.Len(t, tail, 3)

	// 最后3条应对应写入序列的末尾
	assert.Equal(t, candles[7].Timestamp.Unix(), tail[0].Timestamp.Unix())
	assert.Equal(t, candles[9].Timestamp.Unix(), tail[2].Timestamp.Unix())
	assert.Equal(t, "600689.SH", tail[0].Symbol)
	assert.Equal(t, "1m", tail[0].Period)
	assert.InDelta(t, candles[7].Open, tail[0].Open, 1e-9)
}

func TestCSVStore_TailMissingFile(t *testing.T) {
	store, err := NewCSVStore(t.TempDir())
	require.NoError(t, err)

	tail, err := store.TailCandles("missing_kline.csv", 5)
	require.NoError(t, err)
	assert.Empty(t, tail)
}

func TestCSVStore_SaveAndLoadTick(t *testing.T) {
	store, err := NewCSVStore(t.TempDir())
	require.NoError(t, err)

	tick := &core.Tick{
		Symbol:    "600689.SH",
		Name:      "上海三毛",
		Price:     10.5,
		PrevClose: 10.2,
		Timestamp: time.Now(),
		Source:    "tick",
	}

	filename, err := store.SaveTick(tick)
	require.NoError(t, err)
	assert.Equal(t, "600689_SH_real_time_price.json", filename)

	loaded, err := store.LoadTick("600689.SH")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, tick.Symbol, loaded.Symbol)
	assert.InDelta(t, tick.Price, loaded.Price, 1e-9)
}

func TestCSVStore_ListFiles(t *testing.T) {
	store, err := NewCSVStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.SaveCandles("600689_SH_1d_front_kline.csv", testCandles(t, 2)))
	_, err = store.SaveTick(&core.Tick{Symbol: "600689.SH", Timestamp: time.Now()})
	require.NoError(t, err)

	files, err := store.ListFiles()
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestCSVStore_FilePathRejectsTraversal(t *testing.T) {
	store, err := NewCSVStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.FilePath("../etc/passwd")
	assert.Error(t, err)
}
