package metrics

import (
	"context"
	"strings"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

func label(name string, pairs ...string) string {
	b := strings.Builder{}
	b.WriteString(name)
	b.WriteString("{")
	for i := 0; i+1 < len(pairs); i += 2 {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(pairs[i])
		b.WriteString(`="`)
		b.WriteString(pairs[i+1])
		b.WriteString(`"`)
	}
	b.WriteString("}")
	return b.String()
}

// RegisterService creates a duration histogram for every unary method of desc.
// Calls to methods that were never registered are not measured.
func RegisterService(desc *grpc.ServiceDesc) {
	for _, m := range desc.Methods {
		histo := metricSet.GetOrCreateHistogram(label("rpc_durations_seconds", "service", desc.ServiceName, "method", m.MethodName))
		histoMap.LoadOrStore("/"+desc.ServiceName+"/"+m.MethodName, histo)
	}
}

func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		finishRPC(info.FullMethod, start, err)
		return resp, err
	}
}

func finishRPC(fullMethod string, start time.Time, err error) {
	h, ok := histoMap.Load(fullMethod)
	if !ok {
		return
	}
	h.(*metrics.Histogram).UpdateDuration(start)
	if err != nil {
		metricSet.GetOrCreateCounter(label("rpc_errors_total", "method", fullMethod, "code", status.Code(err).String())).Inc()
	}
}
