package observability

const (
	MUsecaseRequests         MetricKey = "usecase_requests_total"
	MUsecaseDuration         MetricKey = "usecase_duration_seconds"
	MHTTPRequests            MetricKey = "http_requests_total"
	MHTTPRequestDuration     MetricKey = "http_request_duration_seconds"
	MExternalRequests        MetricKey = "external_requests_total"
	MExternalRequestDuration MetricKey = "external_request_duration_seconds"
	MWebhookEvents           MetricKey = "webhook_events_total"
	MInventoryDecrements     MetricKey = "inventory_decrements_total"
)

// MetricSpec describes how a MetricKey is registered.
type MetricSpec struct {
	Key    MetricKey
	Help   string
	Labels []string
}

var CounterSpecs = []MetricSpec{
	{MUsecaseRequests, "Total number of use case invocations.", []string{"use_case", "outcome"}},
	{MHTTPRequests, "Total number of HTTP requests.", []string{"method", "route", "status"}},
	{MExternalRequests, "Calls made to external collaborators.", []string{"peer", "endpoint", "outcome"}},
	{MWebhookEvents, "Payment provider webhook deliveries by outcome.", []string{"type", "outcome"}},
	{MInventoryDecrements, "Inventory decrement attempts by outcome.", []string{"outcome"}},
}

var HistogramSpecs = []MetricSpec{
	{MUsecaseDuration, "Duration of use case execution in seconds.", []string{"use_case"}},
	{MHTTPRequestDuration, "Duration of HTTP requests in seconds.", []string{"method", "route", "status"}},
	{MExternalRequestDuration, "Duration of external calls in seconds.", []string{"peer", "endpoint"}},
}
