// Package tracing contains the tracing logic for kubo-core, including configuring the tracer and
// helping keep consistent naming conventions across the stack.
//
// NOTE: Tracing is currently experimental. Span names may change unexpectedly, spans may be removed,
// and backwards-incompatible changes may be made to tracing configuration, options, and defaults.
//
// Tracing is configured through environment variables, as consistent with the OpenTelemetry spec as possible:
//
// https://github.com/open-telemetry/opentelemetry-specification/blob/main/specification/sdk-environment-variables.md
//
//  - OTEL_TRACES_EXPORTER: a comma-separated list of exporters
//    - otlp
//    - zipkin
//    - file
//
// Different exporters have their own set of environment variables, depending on the exporter. These are typically
// standard environment variables. Some common ones:
//
// OTLP HTTP/gRPC:
//
//  - OTEL_EXPORTER_OTLP_PROTOCOL
//    - one of [grpc, http/protobuf]
//    - default: http/protobuf
//  - OTEL_EXPORTER_OTLP_ENDPOINT
//  - OTEL_EXPORTER_OTLP_CERTIFICATE
//  - OTEL_EXPORTER_OTLP_HEADERS
//  - OTEL_EXPORTER_OTLP_COMPRESSION
//  - OTEL_EXPORTER_OTLP_TIMEOUT
//
// Zipkin:
//
//  - OTEL_EXPORTER_ZIPKIN_ENDPOINT
//
// File:
//
//  - OTEL_EXPORTER_FILE_PATH
//    - file path to write JSON traces
//    - default: `$PWD/traces.json`
//
// Implementer Notes
//
// Span names follow a convention of <Component>.<Span>, some examples:
//
//  - component=CoreAPI.UnixfsAPI + span=Add -> CoreAPI.UnixfsAPI.Add
//  - component=CoreAPI.PinAPI + span=Verify -> CoreAPI.PinAPI.Verify
//
// We follow the OpenTelemetry convention of using whatever TracerProvider is registered globally.
package tracing
