// Package acquire drives offer acquisition across seller endpoints: pool
// selection, per-endpoint tool discovery and invocation, normalization,
// relevance scoring, and assembly of the final bounded offer set with a
// parallel diagnostic trace.
package acquire

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/quibble-ai/quibble/config"
	"github.com/quibble-ai/quibble/internal/intent"
	"github.com/quibble-ai/quibble/internal/match"
	"github.com/quibble-ai/quibble/internal/mcpclient"
	"github.com/quibble-ai/quibble/internal/normalize"
	"github.com/quibble-ai/quibble/internal/registry"
	"github.com/quibble-ai/quibble/internal/telemetry"
)

var tracer trace.Tracer = otel.Tracer("quibble/internal/acquire")

// Reliability labels derived from endpoint weight. Presentation heuristic
// only; there is no live trust signal.
const (
	ReliabilityTopRated  = "top rated"
	ReliabilityTrusted   = "trusted"
	ReliabilityNewSeller = "new seller"
)

// Offer is the display-ready unit assembled from one accepted candidate.
type Offer struct {
	SellerID     string        `json:"seller_id"`
	SellerName   string        `json:"seller_name"`
	Headline     string        `json:"headline"`
	PriceText    string        `json:"price_text"`
	ImageURL     string        `json:"image_url,omitempty"`
	ProductURL   string        `json:"product_url"`
	ArrivalDelay time.Duration `json:"arrival_delay"`
	Reliability  string        `json:"reliability"`
}

// Outcome records what happened at one contacted endpoint.
type Outcome struct {
	EndpointID   string `json:"endpoint_id"`
	EndpointName string `json:"endpoint_name"`
	Success      bool   `json:"success"`
	Tool         string `json:"tool,omitempty"`
	Products     int    `json:"products"`
	Err          string `json:"error,omitempty"`
	Reason       string `json:"reason"`
	Accepted     bool   `json:"accepted"`
}

// Trace is the diagnostic record of one acquisition run.
type Trace struct {
	Category  registry.Category `json:"category"`
	Query     string            `json:"query"`
	Contacted []string          `json:"contacted"`
	Outcomes  []Outcome         `json:"outcomes"`
	Fatal     string            `json:"fatal,omitempty"`
}

// Orchestrator owns no per-request state; everything for one run lives on the
// call stack so concurrent requests cannot interfere.
type Orchestrator struct {
	cfg     config.AcquireConfig
	logger  *log.Logger
	client  *mcpclient.Client
	reg     *registry.Registry
	metrics *telemetry.Metrics
	limiter *rate.Limiter
	now     func() time.Time
}

// New builds an orchestrator. metrics may be nil.
func New(cfg config.AcquireConfig, reg *registry.Registry, client *mcpclient.Client, metrics *telemetry.Metrics, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.New(log.Writer(), "[ACQ] ", log.LstdFlags)
	}
	if metrics == nil {
		metrics = telemetry.New()
	}
	if cfg.TargetOffers <= 0 {
		cfg.TargetOffers = 3
	}
	if cfg.PoolMultiplier <= 0 {
		cfg.PoolMultiplier = 3
	}
	if cfg.ListTimeout <= 0 {
		cfg.ListTimeout = 5 * time.Second
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 12 * time.Second
	}
	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return &Orchestrator{
		cfg:     cfg,
		logger:  logger,
		client:  client,
		reg:     reg,
		metrics: metrics,
		limiter: limiter,
		now:     time.Now,
	}
}

// attempt holds the per-endpoint working set of one contact so the relaxed
// pass can re-score without a second network exchange (one attempt per store).
type attempt struct {
	endpoint registry.Endpoint
	products []normalize.Product
	outcome  int // index into trace.Outcomes
}

// AcquireOffers runs the two-pass acquisition for one intent spec. A single
// endpoint's failure never aborts the run, and any internal fault is recorded
// into the trace with the partial offer list still returned.
func (o *Orchestrator) AcquireOffers(ctx context.Context, spec intent.Spec) (offers []Offer, tr *Trace) {
	ctx, span := tracer.Start(ctx, "acquire.run",
		trace.WithAttributes(
			attribute.String("intent.category", string(spec.Category)),
			attribute.String("intent.query", spec.Query),
		))
	defer span.End()

	tr = &Trace{Category: spec.Category, Query: spec.Query}
	defer func() {
		if r := recover(); r != nil {
			tr.Fatal = fmt.Sprintf("internal fault: %v", r)
			o.logger.Printf("acquisition panic recovered: %v", r)
			span.SetStatus(codes.Error, tr.Fatal)
		}
		// one count per contacted endpoint, whatever both passes decided
		for _, out := range tr.Outcomes {
			o.metrics.EndpointsContacted.WithLabelValues(outcomeLabel(out)).Inc()
		}
		o.recordRun(len(offers))
		span.SetAttributes(attribute.Int("offers.accepted", len(offers)))
	}()

	target := o.cfg.TargetOffers
	pool := o.reg.Pool(spec.Category, o.now(), target*o.cfg.PoolMultiplier)
	if len(pool) == 0 {
		o.logger.Printf("no usable endpoints for category %s", spec.Category)
		return nil, tr
	}

	// pass 1: strict matching, stop as soon as the target is reached
	var attempts []attempt
	for _, e := range pool {
		if len(offers) >= target {
			break
		}
		a := o.contact(ctx, e, spec, tr)
		attempts = append(attempts, a)
		if len(a.products) == 0 {
			continue
		}
		best, ok := match.SelectBest(a.products, spec, true)
		if !ok {
			tr.Outcomes[a.outcome].Reason = "rejected by scorer"
			continue
		}
		o.accept(tr, a.outcome, &offers, e, best, "accepted")
	}

	// pass 2: relax the required-term constraint over already-fetched
	// candidates; a thin result set beats an empty one
	if len(offers) < target {
		for _, a := range attempts {
			if len(offers) >= target {
				break
			}
			if tr.Outcomes[a.outcome].Accepted || len(a.products) == 0 {
				continue
			}
			best, ok := match.SelectBest(a.products, spec, false)
			if !ok {
				continue
			}
			o.accept(tr, a.outcome, &offers, a.endpoint, best, "accepted (relaxed)")
		}
	}

	return offers, tr
}

// contact performs discovery plus one search invocation against an endpoint
// and appends its outcome to the trace.
func (o *Orchestrator) contact(ctx context.Context, e registry.Endpoint, spec intent.Spec, tr *Trace) (a attempt) {
	ctx, span := tracer.Start(ctx, "acquire.endpoint",
		trace.WithAttributes(attribute.String("endpoint.id", e.ID)))
	defer span.End()

	start := o.now()
	tr.Contacted = append(tr.Contacted, e.ID)
	out := Outcome{EndpointID: e.ID, EndpointName: e.Name}
	a.endpoint = e
	defer func() {
		tr.Outcomes = append(tr.Outcomes, out)
		a.outcome = len(tr.Outcomes) - 1
		o.metrics.EndpointLatency.Observe(time.Since(start).Seconds())
	}()

	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			out.Err = err.Error()
			out.Reason = "transport fault"
			return a
		}
	}

	tools := o.client.ListTools(ctx, e.MCPURL, o.cfg.ListTimeout)
	toolName, ok := mcpclient.SelectSearchTool(tools)
	if !ok {
		out.Reason = "no matching search tool"
		span.SetStatus(codes.Error, out.Reason)
		return a
	}
	out.Tool = toolName

	var products []normalize.Product
	res := o.client.SearchCatalog(ctx, e.MCPURL, toolName, spec.Query, 10, o.cfg.CallTimeout, func(r mcpclient.Result) bool {
		products = normalize.Products(r, e.BaseURL)
		return len(products) > 0
	})
	if !res.OK {
		out.Err = res.Err
		out.Reason = "transport fault"
		span.SetStatus(codes.Error, res.Err)
		return a
	}
	out.Success = true
	out.Products = len(products)
	if len(products) == 0 {
		out.Reason = "no products"
		return a
	}
	a.products = products
	return a
}

func (o *Orchestrator) accept(tr *Trace, outcome int, offers *[]Offer, e registry.Endpoint, p normalize.Product, reason string) {
	idx := len(*offers)
	*offers = append(*offers, Offer{
		SellerID:     e.ID,
		SellerName:   e.Name,
		Headline:     p.Title,
		PriceText:    p.PriceText,
		ImageURL:     p.ImageURL,
		ProductURL:   p.ProductURL,
		ArrivalDelay: arrivalDelay(idx),
		Reliability:  reliability(e),
	})
	tr.Outcomes[outcome].Accepted = true
	tr.Outcomes[outcome].Reason = reason
	o.metrics.OffersAccepted.Inc()
	o.logger.Printf("accepted %q from %s (%s)", p.Title, e.ID, reason)
}

// arrivalDelay staggers the visible appearance of offers in acceptance order.
func arrivalDelay(idx int) time.Duration {
	return 400*time.Millisecond + time.Duration(idx)*350*time.Millisecond
}

func reliability(e registry.Endpoint) string {
	switch {
	case e.Weight >= 150:
		return ReliabilityTopRated
	case e.Weight >= 100:
		return ReliabilityTrusted
	default:
		return ReliabilityNewSeller
	}
}

// outcomeLabel maps an endpoint's final outcome to its metric label.
func outcomeLabel(out Outcome) string {
	switch {
	case out.Accepted:
		return telemetry.OutcomeAccepted
	case out.Reason == "no products":
		return telemetry.OutcomeNoMatch
	case out.Reason == "rejected by scorer":
		return telemetry.OutcomeRejected
	default:
		return telemetry.OutcomeTransport
	}
}

func (o *Orchestrator) recordRun(accepted int) {
	switch {
	case accepted >= o.cfg.TargetOffers:
		o.metrics.AcquireRuns.WithLabelValues("full").Inc()
	case accepted > 0:
		o.metrics.AcquireRuns.WithLabelValues("partial").Inc()
	default:
		o.metrics.AcquireRuns.WithLabelValues("empty").Inc()
	}
}
