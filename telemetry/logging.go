// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"log/slog"

	"github.com/aleutian-labs/librarian-core/logging"
)

type spanIDKey struct{}

// ContextWithSpanID attaches spanID to ctx so LoggerWithTrace can recover
// it downstream without threading a parameter through every call site.
func ContextWithSpanID(ctx context.Context, spanID string) context.Context {
	if spanID == "" {
		return ctx
	}
	return context.WithValue(ctx, spanIDKey{}, spanID)
}

func spanIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(spanIDKey{}).(string)
	return id, ok && id != ""
}

// LoggerWithTrace returns logger with a span_id field attached when ctx
// carries one (via ContextWithSpanID), so every analyzer's logs correlate
// with the span they ran under. Returns logger unchanged otherwise. A nil
// logger defaults to logging.ForComponent("telemetry").
func LoggerWithTrace(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = logging.ForComponent("telemetry")
	}
	spanID, ok := spanIDFromContext(ctx)
	if !ok {
		return logger
	}
	return logger.With(slog.String("span_id", spanID))
}
