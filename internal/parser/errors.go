package parser

// DecodeError is the kind of failure reported by the decoders. The set is
// closed; compare with errors.Is.
type DecodeError int

const (
	ErrInvalidHeader DecodeError = iota + 1
	ErrInvalidQuestion
	ErrInvalidResourceRecord
	ErrBufferTooShort
)

func (e DecodeError) Error() string {
	switch e {
	case ErrInvalidHeader:
		return "parser: invalid header"
	case ErrInvalidQuestion:
		return "parser: invalid question"
	case ErrInvalidResourceRecord:
		return "parser: invalid resource record"
	case ErrBufferTooShort:
		return "parser: buffer too short"
	default:
		return "parser: unknown decode error"
	}
}
