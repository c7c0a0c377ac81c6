package metric

import (
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// DirCollector reports the number and total size of session files in a
// directory. The directory is read on every scrape.
type DirCollector struct {
	dir    string
	prefix string
	suffix string

	files *prometheus.Desc
	bytes *prometheus.Desc
	temps *prometheus.Desc
	errs  *prometheus.Desc
}

// NewDirCollector creates a collector for files in dir named
// prefix + id + suffix.
func NewDirCollector(dir, prefix, suffix string) *DirCollector {
	labels := prometheus.Labels{"dir": dir}
	return &DirCollector{
		dir:    dir,
		prefix: prefix,
		suffix: suffix,
		files: prometheus.NewDesc(namespace+"_dir_session_files",
			"Session files currently in the directory.", nil, labels),
		bytes: prometheus.NewDesc(namespace+"_dir_session_bytes",
			"Total size of session files in the directory.", nil, labels),
		temps: prometheus.NewDesc(namespace+"_dir_temp_files",
			"Temporary files left in the directory.", nil, labels),
		errs: prometheus.NewDesc(namespace+"_dir_scrape_error",
			"1 if the last directory scan failed.", nil, labels),
	}
}

// Describe implements prometheus.Collector.
func (c *DirCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.files
	ch <- c.bytes
	ch <- c.temps
	ch <- c.errs
}

// Collect implements prometheus.Collector.
func (c *DirCollector) Collect(ch chan<- prometheus.Metric) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		ch <- prometheus.MustNewConstMetric(c.errs, prometheus.GaugeValue, 1)
		return
	}

	var files, temps, size float64
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			if strings.HasSuffix(name, ".tmp") {
				temps++
			}
			continue
		}
		if !strings.HasPrefix(name, c.prefix) || !strings.HasSuffix(name, c.suffix) ||
			len(name) <= len(c.prefix)+len(c.suffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files++
		size += float64(info.Size())
	}

	ch <- prometheus.MustNewConstMetric(c.files, prometheus.GaugeValue, files)
	ch <- prometheus.MustNewConstMetric(c.bytes, prometheus.GaugeValue, size)
	ch <- prometheus.MustNewConstMetric(c.temps, prometheus.GaugeValue, temps)
	ch <- prometheus.MustNewConstMetric(c.errs, prometheus.GaugeValue, 0)
}
