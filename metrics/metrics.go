// Package metrics provides Prometheus metrics for the execution simulator
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// BooksProcessed 已处理的订单簿快照数
	BooksProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_books_processed_total",
		Help: "Number of book snapshots processed by the matching engine",
	}, []string{"market"})

	// FillsTotal 生成的成交笔数
	FillsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_fills_total",
		Help: "Number of fills generated",
	}, []string{"market", "side"})

	// FillVolume 成交数量合计（绝对值，计数）
	FillVolume = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_fill_volume_total",
		Help: "Absolute fill volume in counts",
	}, []string{"market", "side"})

	// CommissionTotal 佣金合计（报价币种）
	CommissionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_commission_total",
		Help: "Total commission charged, in quote units",
	}, []string{"market"})

	// CommissionErrors 费率服务失败次数（逐笔隔离，被丢弃的成交）
	CommissionErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_commission_errors_total",
		Help: "Fee service failures; affected fills are dropped",
	}, []string{"market"})

	// PendingOrders 挂单集合当前大小
	PendingOrders = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sim_pending_orders",
		Help: "Current size of the pending order set",
	}, []string{"market"})

	// OrdersRejected 准入阶段被拒绝的订单数
	OrdersRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_orders_rejected_total",
		Help: "Orders rejected at admission",
	}, []string{"market", "reason"})

	// MatchLatency 单次快照撮合耗时
	MatchLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sim_match_latency_seconds",
		Help:    "Wall time spent matching one book snapshot",
		Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
	}, []string{"market"})
)

// RecordFill 记录一笔成交的指标。
func RecordFill(market, side string, volume, commission float64) {
	FillsTotal.WithLabelValues(market, side).Inc()
	FillVolume.WithLabelValues(market, side).Add(volume)
	CommissionTotal.WithLabelValues(market).Add(commission)
}

// StartMetricsServer 启动Prometheus指标服务器
func StartMetricsServer(addr string) {
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		_ = http.ListenAndServe(addr, nil)
	}()
}
