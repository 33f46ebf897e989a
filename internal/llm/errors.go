package llm

import "errors"

var (
	// ErrInvalidShape is returned when a model reply does not parse as JSON or
	// lacks a required field.
	ErrInvalidShape = errors.New("invalid response shape")
	// ErrNoImageData is returned when an image call succeeds but carries no
	// inline image payload.
	ErrNoImageData = errors.New("no image data received from API")
	// ErrInvalidRequest is returned when a gateway method is called with
	// arguments its caller should have rejected.
	ErrInvalidRequest = errors.New("invalid request")
)

// User-facing messages, one per gateway call.
const (
	MsgFetchProductFailed   = "Failed to fetch product information. Please check the barcode and try again."
	MsgGenerateTagsFailed   = "Failed to generate product tags. Please try again."
	MsgGenerateBannerFailed = "Failed to generate the promotional banner. Please try again later."
)

// UserError carries a short message that is safe to show to the user. The
// underlying cause stays available through errors.Is/As for logging.
type UserError struct {
	Message string
	Err     error
}

func (e *UserError) Error() string { return e.Message }

func (e *UserError) Unwrap() error { return e.Err }

func userError(msg string, err error) *UserError {
	return &UserError{Message: msg, Err: err}
}

// UserMessage returns the message to show for err, or fallback when err is
// not a UserError.
func UserMessage(err error, fallback string) string {
	var ue *UserError
	if errors.As(err, &ue) && ue.Message != "" {
		return ue.Message
	}
	return fallback
}
