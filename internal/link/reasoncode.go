package link

// ReasonCode is an MQTT v5 reason code as returned in a PUBACK, SUBACK or
// UNSUBACK. Values follow the MQTT v5 spec's numeric assignments.
type ReasonCode byte

const (
	ReasonSuccess                     ReasonCode = 0x00
	ReasonNoMatchingSubscribers       ReasonCode = 0x10
	ReasonUnspecifiedError            ReasonCode = 0x80
	ReasonImplementationSpecificError ReasonCode = 0x83
	ReasonNotAuthorized               ReasonCode = 0x87
	ReasonServerBusy                  ReasonCode = 0x89
	ReasonTopicFilterInvalid          ReasonCode = 0x8F
	ReasonTopicNameInvalid            ReasonCode = 0x90
	ReasonPacketIdentifierInUse       ReasonCode = 0x91
	ReasonQuotaExceeded               ReasonCode = 0x97
	ReasonPayloadFormatInvalid        ReasonCode = 0x99
	ReasonRetainNotSupported          ReasonCode = 0x9A
	ReasonQoSNotSupported             ReasonCode = 0x9B
	ReasonUseAnotherServer            ReasonCode = 0x9C
	ReasonServerMoved                 ReasonCode = 0x9D
	ReasonSharedSubNotSupported       ReasonCode = 0x9E
	ReasonConnectionRateExceeded      ReasonCode = 0x9F
)

// Ok reports whether the code represents success (including the
// "success with no matching subscribers" case for PUBLISH).
func (c ReasonCode) Ok() bool {
	return c == ReasonSuccess || c == ReasonNoMatchingSubscribers
}

// Retryable classifies a non-success reason code per spec §4.C's
// retryable/non-retryable PUBACK table: transient capacity/backpressure
// conditions are retryable, policy/protocol rejections are not.
func (c ReasonCode) Retryable() bool {
	switch c {
	case ReasonUnspecifiedError, ReasonImplementationSpecificError, ReasonServerBusy,
		ReasonQuotaExceeded, ReasonConnectionRateExceeded:
		return true
	default:
		return false
	}
}
