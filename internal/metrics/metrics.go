package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultSkipped = "skipped"
)

var (
	CartMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Subsystem: "cart",
		Name:      "mutations_total",
		Help:      "Cart mutations by operation and result.",
	}, []string{"operation", "result"})

	CartLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Subsystem: "cart",
		Name:      "loads_total",
		Help:      "Cart snapshot loads by result. Shared loads count once per caller.",
	}, []string{"result"})

	Checkouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Subsystem: "checkout",
		Name:      "submissions_total",
		Help:      "Checkout submissions by result.",
	}, []string{"result"})

	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Subsystem: "notification",
		Name:      "deliveries_total",
		Help:      "Admin notifications by result.",
	}, []string{"result"})

	ForcedSignOuts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "storefront",
		Subsystem: "session",
		Name:      "forced_sign_outs_total",
		Help:      "Sessions signed out because their credential expired.",
	})
)

func Result(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}

func Handler() http.Handler {
	return promhttp.Handler()
}
