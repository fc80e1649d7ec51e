package storage

import (
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/sirupsen/logrus"

	"klinehub/pkg/logger"
	"klinehub/pkg/provider/core"
)

// InfluxSink 可选的K线/快照时序库落地，与CSV存储并行写入
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	log      *logrus.Entry
}

// InfluxConfig InfluxDB连接配置
type InfluxConfig struct {
	URL    string `mapstructure:"url"`
	Token  string `mapstructure:"token"`
	Org    string `mapstructure:"org"`
	Bucket string `mapstructure:"bucket"`
}

// NewInfluxSink 创建InfluxDB落地器（异步写入）
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
		log:      logger.WithComponent("InfluxSink"),
	}
}

// WriteCandles 异步写入K线数据点
func (s *InfluxSink) WriteCandles(candles []core.Candle) {
	for _, c := range candles {
		point := influxdb2.NewPointWithMeasurement("kline").
			AddTag("symbol", c.Symbol).
			AddTag("period", c.Period).
			AddTag("dividend_type", c.DividendType).
			AddField("open", c.Open).
			AddField("high", c.High).
			AddField("low", c.Low).
			AddField("close", c.Close).
			AddField("volume", c.Volume).
			AddField("turnover", c.Turnover).
			SetTime(c.Timestamp)

		s.writeAPI.WritePoint(point)
	}
	s.log.Debugf("已提交 %d 个K线数据点", len(candles))
}

// WriteTick 异步写入实时快照数据点
func (s *InfluxSink) WriteTick(tick *core.Tick) {
	point := influxdb2.NewPointWithMeasurement("stock_realtime").
		AddTag("symbol", tick.Symbol).
		AddTag("name", tick.Name).
		AddTag("source", tick.Source).
		AddField("price", tick.Price).
		AddField("change", tick.Change).
		AddField("change_percent", tick.ChangePercent).
		AddField("volume", tick.Volume).
		SetTime(tick.Timestamp)

	s.writeAPI.WritePoint(point)
}

// Close 刷新缓冲并关闭客户端
func (s *InfluxSink) Close() {
	s.writeAPI.Flush()
	s.client.Close()
}
