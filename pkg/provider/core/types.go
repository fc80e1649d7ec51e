package core

import "time"

// Candle K线数据
// 表示一个时间周期内的K线（开高低收/量额）及派生指标
type Candle struct {
	Symbol       string    `json:"symbol"`        // 股票代码，如 600689.SH
	Timestamp    time.Time `json:"timestamp"`     // K线时间
	Open         float64   `json:"open"`          // 开盘价
	High         float64   `json:"high"`          // 最高价
	Low          float64   `json:"low"`           // 最低价
	Close        float64   `json:"close"`         // 收盘价
	Volume       int64     `json:"volume"`        // 成交量
	Turnover     float64   `json:"turnover"`      // 成交额
	Period       string    `json:"period"`        // 时间周期
	DividendType string    `json:"dividend_type"` // 复权类型 none/front/back
}

// Change K线涨跌额（收盘价 - 开盘价）
func (c Candle) Change() float64 {
	return c.Close - c.Open
}

// ChangePercent K线涨跌幅(%)，开盘价为零时返回0
func (c Candle) ChangePercent() float64 {
	if c.Open == 0 {
		return 0
	}
	return (c.Close - c.Open) / c.Open * 100
}

// Amplitude K线振幅(%)，开盘价为零时返回0
func (c Candle) Amplitude() float64 {
	if c.Open == 0 {
		return 0
	}
	return (c.High - c.Low) / c.Open * 100
}

// Date 返回K线所属的自然日（本地时区，零点对齐）
func (c Candle) Date() time.Time {
	y, m, d := c.Timestamp.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.Timestamp.Location())
}

// Tick 实时行情快照
type Tick struct {
	Symbol        string    `json:"symbol"`         // 股票代码
	Name          string    `json:"name"`           // 股票名称
	Price         float64   `json:"current_price"`  // 最新价
	Open          float64   `json:"open"`           // 今开
	High          float64   `json:"high"`           // 最高
	Low           float64   `json:"low"`            // 最低
	PrevClose     float64   `json:"prev_close"`     // 昨收
	Change        float64   `json:"change"`         // 涨跌额
	ChangePercent float64   `json:"change_percent"` // 涨跌幅(%)
	Volume        int64     `json:"volume"`         // 成交量
	Turnover      float64   `json:"turnover"`       // 成交额
	Timestamp     time.Time `json:"timestamp"`      // 快照时间
	Source        string    `json:"source"`         // 数据来源 tick/kline
}
