package kafka

const (
	TopicPaymentRequest = "payment.request"

	TopicOrderPaid     = "order.paid"
	TopicPaymentFailed = "payment.failed"

	// Dead-letter suffix appended to a consumed topic when its handler
	// fails; poisoned payloads land there for reprocessing instead of
	// being retried forever in-line.
	DeadLetterSuffix = ".dlq"

	HeaderDeadLetterReason = "x-dead-letter-reason"
)
