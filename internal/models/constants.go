package models

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusNoShow    = "no_show"
)

const (
	PaymentPending = "pending"
	PaymentPartial = "partial"
	PaymentPaid    = "paid"
	PaymentFailed  = "failed"
)

const (
	PaymentTypeFull    = "full"
	PaymentTypeDeposit = "deposit"
)

const (
	MethodCash   = "cash"
	MethodOnline = "online"
)

const (
	// DateLayout формат даты бронирования в БД и API
	DateLayout = "2006-01-02"

	// TimeLayout формат времени начала слота
	TimeLayout = "15:04"
)

const (
	// WebhookDedupTTL время жизни ключа дедупликации вебхука в Redis
	WebhookDedupTTL = 48 * 60 * 60 // 48 часов в секундах

	// WorkerQueueSize размер очереди воркера
	WorkerQueueSize = 1000

	// DefaultSlotGranularity шаг слотов по умолчанию, минуты
	DefaultSlotGranularity = 30

	// DefaultMaxAdvanceDays максимальное окно бронирования по умолчанию
	DefaultMaxAdvanceDays = 30
)

// IsActiveStatus reports whether a booking in this status holds its slot.
func IsActiveStatus(status string) bool {
	return status == StatusPending || status == StatusConfirmed
}

// paymentRank orders payment statuses for the monotonic lattice.
var paymentRank = map[string]int{
	PaymentPending: 0,
	PaymentFailed:  1,
	PaymentPartial: 2,
	PaymentPaid:    3,
}

// CanAdvancePayment reports whether payment_status may move from -> to.
// paid is terminal; failed may still be overtaken by a later genuine
// success callback.
func CanAdvancePayment(from, to string) bool {
	fr, ok := paymentRank[from]
	if !ok {
		return false
	}
	tr, ok := paymentRank[to]
	if !ok {
		return false
	}
	return tr > fr
}
