package observability

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type scrapeErrorLogger struct {
	logger zerolog.Logger
}

func (l scrapeErrorLogger) Println(v ...interface{}) {
	l.logger.Error().Msg(fmt.Sprint(v...))
}

// MetricsHandler exposes the Prometheus scrape endpoint via Fiber. Collection errors are
// logged and the remaining metrics are still served.
func MetricsHandler(logger zerolog.Logger) fiber.Handler {
	RegisterMetrics()
	return adaptor.HTTPHandler(promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		ErrorLog:          scrapeErrorLogger{logger: logger.With().Str("component", "metrics").Logger()},
		ErrorHandling:     promhttp.ContinueOnError,
		EnableOpenMetrics: true,
	}))
}
