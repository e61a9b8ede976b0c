package usecase

import (
	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/listing/domain"
	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/platform/metrics"
)

type options struct {
	cache     domain.ListingCache
	publisher domain.EventPublisher
	notifier  domain.Notifier
	taxonomy  domain.Taxonomy
	metrics   *metrics.Metrics
	pageSize  int
}

// Option wires an optional collaborator into a usecase.
type Option func(*options)

func WithCache(c domain.ListingCache) Option {
	return func(o *options) { o.cache = c }
}

func WithPublisher(p domain.EventPublisher) Option {
	return func(o *options) { o.publisher = p }
}

func WithNotifier(n domain.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithTaxonomy enables the server-side "category required when the type has
// children" checks on create and update.
func WithTaxonomy(t domain.Taxonomy) Option {
	return func(o *options) { o.taxonomy = t }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func WithPageSize(n int) Option {
	return func(o *options) { o.pageSize = n }
}

func collectOptions(opts []Option) options {
	o := options{pageSize: 6}
	for _, opt := range opts {
		opt(&o)
	}
	if o.pageSize <= 0 {
		o.pageSize = 6
	}
	return o
}
