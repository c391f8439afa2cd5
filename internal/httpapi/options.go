package httpapi

import (
	"time"

	"github.com/John-Robertt/rulesync/internal/fetch"
	"github.com/John-Robertt/rulesync/internal/metrics"
)

// Options controls HTTP API runtime behavior.
type Options struct {
	// ConvertTimeout bounds a single conversion request, including the
	// optional remote fetch.
	ConvertTimeout time.Duration

	// FetchTimeout is the per-request timeout for url= conversions.
	FetchTimeout time.Duration

	// MaxBodyBytes caps a POSTed rule list.
	MaxBodyBytes int64

	Metrics *metrics.Collector
	Fetcher fetch.Fetcher
}

func (o Options) withDefaults() Options {
	if o.ConvertTimeout <= 0 {
		o.ConvertTimeout = 60 * time.Second
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = fetch.DefaultTimeout
	}
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = 16 * 1024 * 1024
	}
	if o.Metrics == nil {
		o.Metrics = metrics.NewCollector()
	}
	if o.Fetcher == nil {
		o.Fetcher = fetch.HTTPFetcher{Options: fetch.Options{Timeout: o.FetchTimeout}}
	}
	return o
}
