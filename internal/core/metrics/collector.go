package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mooscomms"

// Collector 把 Reporter 的统计导出为 Prometheus 指标
//
// 每个客户端一个 Collector，通过常量标签 client 区分。
type Collector struct {
	r Reporter

	msgsSent  *prometheus.Desc
	bytesSent *prometheus.Desc
	msgsRecv  *prometheus.Desc
	bytesRecv *prometheus.Desc
	rateOut   *prometheus.Desc
	rateIn    *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector 创建 Collector
func NewCollector(r Reporter, client string) *Collector {
	labels := prometheus.Labels{"client": client}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, nil, labels)
	}
	return &Collector{
		r:         r,
		msgsSent:  desc("messages_sent_total", "Messages sent to the MOOSDB."),
		bytesSent: desc("bytes_sent_total", "Frame bytes sent to the MOOSDB."),
		msgsRecv:  desc("messages_received_total", "Messages received from the MOOSDB."),
		bytesRecv: desc("bytes_received_total", "Frame bytes received from the MOOSDB."),
		rateOut:   desc("send_rate_bytes", "Average outbound bytes per second over the last minute."),
		rateIn:    desc("receive_rate_bytes", "Average inbound bytes per second over the last minute."),
	}
}

// Describe 实现 prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.msgsSent
	ch <- c.bytesSent
	ch <- c.msgsRecv
	ch <- c.bytesRecv
	ch <- c.rateOut
	ch <- c.rateIn
}

// Collect 实现 prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.r.Totals()
	ch <- prometheus.MustNewConstMetric(c.msgsSent, prometheus.CounterValue, float64(s.MessagesSent))
	ch <- prometheus.MustNewConstMetric(c.bytesSent, prometheus.CounterValue, float64(s.BytesSent))
	ch <- prometheus.MustNewConstMetric(c.msgsRecv, prometheus.CounterValue, float64(s.MessagesReceived))
	ch <- prometheus.MustNewConstMetric(c.bytesRecv, prometheus.CounterValue, float64(s.BytesReceived))
	ch <- prometheus.MustNewConstMetric(c.rateOut, prometheus.GaugeValue, s.RateOut)
	ch <- prometheus.MustNewConstMetric(c.rateIn, prometheus.GaugeValue, s.RateIn)
}
