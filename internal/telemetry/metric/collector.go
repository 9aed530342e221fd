package metric

import "github.com/prometheus/client_golang/prometheus"

// Stats is a point-in-time view of server state.
type Stats struct {
	Keys           int
	WaitPoints     int
	BlockedWaiters int
	ActiveSessions int
	WaitingLogins  int
	Accounts       int
	MaxSessions    int
}

// StatsFunc returns the current Stats. It is called on every scrape.
type StatsFunc func() Stats

// StatsCollector exports Stats as gauges.
type StatsCollector struct {
	stats StatsFunc

	keys           *prometheus.Desc
	waitPoints     *prometheus.Desc
	blockedWaiters *prometheus.Desc
	activeSessions *prometheus.Desc
	waitingLogins  *prometheus.Desc
	accounts       *prometheus.Desc
	maxSessions    *prometheus.Desc
}

// NewStatsCollector creates a collector reading from fn.
func NewStatsCollector(fn StatsFunc) *StatsCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(Namespace, "", name), help, nil, nil)
	}
	return &StatsCollector{
		stats:          fn,
		keys:           desc("store_keys", "Number of keys in the store."),
		waitPoints:     desc("store_wait_points", "Number of keys with a wait point."),
		blockedWaiters: desc("getwhen_blocked", "Number of GETWHEN calls currently blocked."),
		activeSessions: desc("sessions_active", "Number of admitted sessions."),
		waitingLogins:  desc("logins_waiting", "Number of logins waiting for admission."),
		accounts:       desc("accounts", "Number of registered accounts."),
		maxSessions:    desc("sessions_max", "Configured session cap."),
	}
}

// Describe implements prometheus.Collector.
func (c *StatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.keys
	ch <- c.waitPoints
	ch <- c.blockedWaiters
	ch <- c.activeSessions
	ch <- c.waitingLogins
	ch <- c.accounts
	ch <- c.maxSessions
}

// Collect implements prometheus.Collector.
func (c *StatsCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats()
	gauge := func(d *prometheus.Desc, v int) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, float64(v))
	}
	gauge(c.keys, s.Keys)
	gauge(c.waitPoints, s.WaitPoints)
	gauge(c.blockedWaiters, s.BlockedWaiters)
	gauge(c.activeSessions, s.ActiveSessions)
	gauge(c.waitingLogins, s.WaitingLogins)
	gauge(c.accounts, s.Accounts)
	gauge(c.maxSessions, s.MaxSessions)
}
