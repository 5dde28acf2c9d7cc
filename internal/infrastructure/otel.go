package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"aqicli/internal/config"
	"aqicli/pkg/contracts"
)

const (
	ServiceName    = "aq-validation-pipeline"
	ServiceVersion = contracts.Version
	MeterName      = "aqicli"
)

// OTelConfig holds OpenTelemetry configuration
type OTelConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	TraceExporter  string // "stdout", "none"
	MetricExporter string // "prometheus", "none"
	EnableMetrics  bool
	EnableTracing  bool
	SampleRatio    float64
	PrometheusAddr string
}

// OTelProviders holds the OpenTelemetry providers
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	PrometheusHTTP http.Handler
	Logger         *slog.Logger
}

// DefaultOTelConfig returns a default OpenTelemetry configuration
func DefaultOTelConfig() *OTelConfig {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	return &OTelConfig{
		ServiceName:    ServiceName,
		ServiceVersion: ServiceVersion,
		Environment:    env,
		TraceExporter:  "stdout",
		MetricExporter: "prometheus",
		EnableMetrics:  true,
		EnableTracing:  true,
		SampleRatio:    1.0,
		PrometheusAddr: ":9090",
	}
}

// OTelConfigFromMetrics maps the application metrics config onto an OTelConfig.
func OTelConfigFromMetrics(cfg config.MetricsConfig) *OTelConfig {
	otelCfg := DefaultOTelConfig()
	otelCfg.EnableMetrics = cfg.Enabled
	otelCfg.PrometheusAddr = cfg.ListenAddr
	otelCfg.TraceExporter = cfg.TraceExporter
	otelCfg.EnableTracing = cfg.TraceExporter != "none"
	if !cfg.Enabled {
		otelCfg.MetricExporter = "none"
	}
	return otelCfg
}

// InitializeOTel initializes OpenTelemetry tracing and metrics providers.
func InitializeOTel(cfg *OTelConfig, logger *slog.Logger) (*OTelProviders, error) {
	if cfg == nil {
		cfg = DefaultOTelConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx := context.Background()

	logger.InfoContext(ctx, "Initializing OpenTelemetry",
		slog.String("service", cfg.ServiceName),
		slog.String("version", cfg.ServiceVersion),
		slog.String("environment", cfg.Environment),
		slog.Bool("tracing_enabled", cfg.EnableTracing),
		slog.Bool("metrics_enabled", cfg.EnableMetrics))

	res, err := createResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	providers := &OTelProviders{
		Logger: logger,
	}

	if cfg.EnableTracing {
		if err := initializeTracing(ctx, cfg, res, providers); err != nil {
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
	}

	if cfg.EnableMetrics {
		if err := initializeMetrics(ctx, cfg, res, providers); err != nil {
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.InfoContext(ctx, "OpenTelemetry initialization complete",
		slog.Bool("tracing_enabled", cfg.EnableTracing),
		slog.Bool("metrics_enabled", cfg.EnableMetrics))

	return providers, nil
}

// createResource creates the OpenTelemetry resource
func createResource(cfg *OTelConfig) (*resource.Resource, error) {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironment(cfg.Environment),
		attribute.String("service.instance.id", generateInstanceID()),
	), nil
}

// initializeTracing sets up OpenTelemetry tracing
func initializeTracing(ctx context.Context, cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	var exporter sdktrace.SpanExporter
	var err error

	switch cfg.TraceExporter {
	case "stdout":
		exporter, err = stdouttrace.New(
			stdouttrace.WithPrettyPrint(),
		)
	case "none":
		return nil
	default:
		return fmt.Errorf("unsupported trace exporter: %s", cfg.TraceExporter)
	}

	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRatio)),
	)

	providers.TracerProvider = tp
	providers.Tracer = tp.Tracer(MeterName, trace.WithInstrumentationVersion(cfg.ServiceVersion))

	otel.SetTracerProvider(tp)

	providers.Logger.InfoContext(ctx, "Tracing initialized",
		slog.String("exporter", cfg.TraceExporter),
		slog.Float64("sample_ratio", cfg.SampleRatio))

	return nil
}

// initializeMetrics sets up OpenTelemetry metrics
func initializeMetrics(ctx context.Context, cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	switch cfg.MetricExporter {
	case "prometheus":
		exporter, err := prometheus.New()
		if err != nil {
			return fmt.Errorf("failed to create prometheus exporter: %w", err)
		}

		providers.PrometheusHTTP = promhttp.Handler()

		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)

		providers.MeterProvider = mp
		providers.Meter = mp.Meter(MeterName, metric.WithInstrumentationVersion(cfg.ServiceVersion))

		otel.SetMeterProvider(mp)

	case "none":
		return nil
	default:
		return fmt.Errorf("unsupported metric exporter: %s", cfg.MetricExporter)
	}

	providers.Logger.InfoContext(ctx, "Metrics initialized",
		slog.String("exporter", cfg.MetricExporter))

	return nil
}

// PipelineMetrics holds the instruments recorded by the cleaning and
// validation pipelines.
type PipelineMetrics struct {
	ObservationsProcessed metric.Int64Counter
	ValuesImputed         metric.Int64Counter
	OutliersDetected      metric.Int64Counter
	ConstraintViolations  metric.Int64Counter
	AnomaliesDetected     metric.Int64Counter
	RowsDropped           metric.Int64Counter
	StageDuration         metric.Float64Histogram

	ValidationUnitsTotal   metric.Int64Counter
	ValidationUnitsFailed  metric.Int64Counter
	ValidationUnitDuration metric.Float64Histogram
	ActiveValidationUnits  metric.Int64UpDownCounter

	AdapterCalls        metric.Int64Counter
	AdapterCallDuration metric.Float64Histogram
}

// CreatePipelineMetrics creates the application-specific metric instruments.
func CreatePipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	observationsProcessed, err := meter.Int64Counter(
		"aq_observations_processed_total",
		metric.WithDescription("Total number of observations processed by the cleaning pipeline"),
	)
	if err != nil {
		return nil, err
	}

	valuesImputed, err := meter.Int64Counter(
		"aq_values_imputed_total",
		metric.WithDescription("Total number of missing values filled by imputation"),
	)
	if err != nil {
		return nil, err
	}

	outliersDetected, err := meter.Int64Counter(
		"aq_outliers_detected_total",
		metric.WithDescription("Total number of outlier values detected"),
	)
	if err != nil {
		return nil, err
	}

	constraintViolations, err := meter.Int64Counter(
		"aq_constraint_violations_total",
		metric.WithDescription("Total number of physical constraint violations corrected"),
	)
	if err != nil {
		return nil, err
	}

	anomaliesDetected, err := meter.Int64Counter(
		"aq_temporal_anomalies_total",
		metric.WithDescription("Total number of temporal anomalies flagged"),
	)
	if err != nil {
		return nil, err
	}

	rowsDropped, err := meter.Int64Counter(
		"aq_rows_dropped_total",
		metric.WithDescription("Total number of rows dropped during cleaning"),
	)
	if err != nil {
		return nil, err
	}

	stageDuration, err := meter.Float64Histogram(
		"aq_stage_duration_seconds",
		metric.WithDescription("Pipeline stage duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	validationUnitsTotal, err := meter.Int64Counter(
		"aq_validation_units_total",
		metric.WithDescription("Total number of (model, city, horizon) validation units executed"),
	)
	if err != nil {
		return nil, err
	}

	validationUnitsFailed, err := meter.Int64Counter(
		"aq_validation_units_failed_total",
		metric.WithDescription("Total number of validation units that failed"),
	)
	if err != nil {
		return nil, err
	}

	validationUnitDuration, err := meter.Float64Histogram(
		"aq_validation_unit_duration_seconds",
		metric.WithDescription("Validation unit duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	activeValidationUnits, err := meter.Int64UpDownCounter(
		"aq_active_validation_units",
		metric.WithDescription("Number of validation units currently running"),
	)
	if err != nil {
		return nil, err
	}

	adapterCalls, err := meter.Int64Counter(
		"aq_adapter_calls_total",
		metric.WithDescription("Total number of model adapter calls"),
	)
	if err != nil {
		return nil, err
	}

	adapterCallDuration, err := meter.Float64Histogram(
		"aq_adapter_call_duration_seconds",
		metric.WithDescription("Model adapter call duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &PipelineMetrics{
		ObservationsProcessed:  observationsProcessed,
		ValuesImputed:          valuesImputed,
		OutliersDetected:       outliersDetected,
		ConstraintViolations:   constraintViolations,
		AnomaliesDetected:      anomaliesDetected,
		RowsDropped:            rowsDropped,
		StageDuration:          stageDuration,
		ValidationUnitsTotal:   validationUnitsTotal,
		ValidationUnitsFailed:  validationUnitsFailed,
		ValidationUnitDuration: validationUnitDuration,
		ActiveValidationUnits:  activeValidationUnits,
		AdapterCalls:           adapterCalls,
		AdapterCallDuration:    adapterCallDuration,
	}, nil
}

// Shutdown gracefully shuts down OpenTelemetry providers
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var errs []error

	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}

	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("opentelemetry shutdown errors: %v", errs)
	}

	p.Logger.InfoContext(ctx, "OpenTelemetry shutdown complete")
	return nil
}

// generateInstanceID generates a unique instance identifier
func generateInstanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, time.Now().Unix())
}

// TraceIDFromContext extracts trace ID from context for logging correlation
func TraceIDFromContext(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.IsValid() {
		return spanCtx.TraceID().String()
	}
	return ""
}

// SpanFromContext returns the current span from context
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// AddSpanEvent adds an event to the current span with structured attributes
func AddSpanEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	span.AddEvent(name, trace.WithAttributes(attributeList(attributes)...))
}

// RecordError records an error on the current span
func RecordError(ctx context.Context, err error, options ...trace.EventOption) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	span.RecordError(err, options...)
	span.SetStatus(codes.Error, err.Error())
}

// SetSpanAttributes sets attributes on the current span
func SetSpanAttributes(ctx context.Context, attributes map[string]interface{}) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	span.SetAttributes(attributeList(attributes)...)
}

func attributeList(attributes map[string]interface{}) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(attributes))
	for k, v := range attributes {
		switch val := v.(type) {
		case string:
			attrs = append(attrs, attribute.String(k, val))
		case int:
			attrs = append(attrs, attribute.Int(k, val))
		case int64:
			attrs = append(attrs, attribute.Int64(k, val))
		case float64:
			attrs = append(attrs, attribute.Float64(k, val))
		case bool:
			attrs = append(attrs, attribute.Bool(k, val))
		default:
			attrs = append(attrs, attribute.String(k, fmt.Sprintf("%v", val)))
		}
	}
	return attrs
}

// RecordStageMetrics records duration and status for a pipeline stage.
func RecordStageMetrics(ctx context.Context, metrics *PipelineMetrics, stage, city string, duration time.Duration, success bool) {
	if metrics == nil {
		return
	}

	status := "success"
	if !success {
		status = "failure"
	}

	metrics.StageDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("city", city),
		attribute.String("status", status),
	))
}

// CleaningCounts carries per-city counter increments from one cleaning run.
type CleaningCounts struct {
	Observations int64
	Imputed      int64
	Outliers     int64
	Violations   int64
	Anomalies    int64
	Dropped      int64
}

// RecordCleaningMetrics increments the cleaning counters for one city.
func RecordCleaningMetrics(ctx context.Context, metrics *PipelineMetrics, city string, counts CleaningCounts) {
	if metrics == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("city", city))

	metrics.ObservationsProcessed.Add(ctx, counts.Observations, attrs)
	metrics.ValuesImputed.Add(ctx, counts.Imputed, attrs)
	metrics.OutliersDetected.Add(ctx, counts.Outliers, attrs)
	metrics.ConstraintViolations.Add(ctx, counts.Violations, attrs)
	metrics.AnomaliesDetected.Add(ctx, counts.Anomalies, attrs)
	metrics.RowsDropped.Add(ctx, counts.Dropped, attrs)
}

// RecordUnitMetrics records metrics for one (model, city, horizon) validation unit.
func RecordUnitMetrics(ctx context.Context, metrics *PipelineMetrics, modelID, city string, horizon int, duration time.Duration, err error) {
	if metrics == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("model", modelID),
		attribute.String("city", city),
		attribute.Int("horizon_hours", horizon),
	}

	metrics.ValidationUnitsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))

	status := "success"
	if err != nil {
		status = "failure"
		metrics.ValidationUnitsFailed.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	durationAttrs := append(attrs, attribute.String("status", status))
	metrics.ValidationUnitDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(durationAttrs...))

	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.AddEvent("validation.unit_recorded",
			trace.WithAttributes(
				attribute.String("model", modelID),
				attribute.String("city", city),
				attribute.Int("horizon_hours", horizon),
				attribute.Bool("success", err == nil),
				attribute.Float64("duration_seconds", duration.Seconds()),
			),
		)
	}
}

// RecordActiveUnitChange records changes in the active validation unit count.
func RecordActiveUnitChange(ctx context.Context, metrics *PipelineMetrics, delta int64, modelID string) {
	if metrics == nil {
		return
	}

	metrics.ActiveValidationUnits.Add(ctx, delta, metric.WithAttributes(
		attribute.String("model", modelID),
	))
}

// RecordAdapterCall records one model adapter invocation.
func RecordAdapterCall(ctx context.Context, metrics *PipelineMetrics, modelID, operation string, duration time.Duration, err error) {
	if metrics == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "failure"
	}

	attrs := []attribute.KeyValue{
		attribute.String("model", modelID),
		attribute.String("operation", operation),
		attribute.String("status", status),
	}

	metrics.AdapterCalls.Add(ctx, 1, metric.WithAttributes(attrs...))
	metrics.AdapterCallDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}
