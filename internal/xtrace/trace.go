/*
 *    Copyright 2021 chenquan
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

// Package xtrace wires an OpenTelemetry TracerProvider with a pluggable
// exporter (Jaeger or Zipkin), matching server.go's
// otel.GetTracerProvider().Tracer(xtrace.Name) call site.
package xtrace

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Name is the tracer name every broker component requests via
// otel.GetTracerProvider().Tracer(xtrace.Name).
const Name = "github.com/yunqi/beacon"

// Exporter selects the trace backend.
type Exporter string

const (
	ExporterNone   Exporter = ""
	ExporterJaeger Exporter = "jaeger"
	ExporterZipkin Exporter = "zipkin"
)

// Options configures the global TracerProvider.
type Options struct {
	Exporter    Exporter
	Endpoint    string
	ServiceName string
}

// Init installs a global TracerProvider built from opts. With
// ExporterNone it installs nothing and leaves the global provider as it
// is (otel's default no-op provider unless one was set earlier), so
// spans created against xtrace.Name are always safe to create even when
// tracing is disabled.
func Init(opts Options) error {
	if opts.Exporter == ExporterNone {
		return nil
	}

	var exp sdktrace.SpanExporter
	var err error
	switch opts.Exporter {
	case ExporterJaeger:
		exp, err = jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(opts.Endpoint)))
	case ExporterZipkin:
		exp, err = zipkin.New(opts.Endpoint)
	default:
		return fmt.Errorf("xtrace: unknown exporter %q", opts.Exporter)
	}
	if err != nil {
		return fmt.Errorf("xtrace: build exporter: %w", err)
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(attribute.String("service.name", opts.ServiceName)),
	)
	if err != nil {
		return fmt.Errorf("xtrace: build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return nil
}
